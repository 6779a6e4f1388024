package interpolation

import (
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"nninterp/internal/models"
	"nninterp/pkg/cache"
	"nninterp/pkg/derivatives"
	"nninterp/pkg/triangulation"
)

// createTestData builds a jittered n×n grid on the unit square and samples f
// at its sites
func createTestData(t *testing.T, n int, f func(x, y float64) float64) (*triangulation.Triangulation, []float64) {
	pts := make([]models.Point, 0, n*n)
	h := 1 / float64(n-1)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			dx := 0.2 * h * math.Sin(1.7*float64(i)+2.3*float64(j)+0.4)
			dy := 0.2 * h * math.Cos(2.9*float64(i)-1.1*float64(j)+0.9)
			pts = append(pts, models.Point{X: float64(i)*h + dx, Y: float64(j)*h + dy})
		}
	}
	tr, err := triangulation.New(pts)
	require.NoError(t, err)
	z := make([]float64, len(pts))
	for i, p := range pts {
		z[i] = f(p.X, p.Y)
	}
	return tr, z
}

func unitSquare(t *testing.T) (*triangulation.Triangulation, []float64) {
	tr, err := triangulation.New([]models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}})
	require.NoError(t, err)
	return tr, []float64{0, 1, 2, 1}
}

// queryGrid returns aligned coordinates of an m×m lattice inside [lo, hi]²
func queryGrid(m int, lo, hi float64) (xs, ys []float64) {
	for j := 0; j < m; j++ {
		for i := 0; i < m; i++ {
			xs = append(xs, lo+(hi-lo)*float64(i)/float64(m-1)+1e-4*float64(j))
			ys = append(ys, lo+(hi-lo)*float64(j)/float64(m-1))
		}
	}
	return xs, ys
}

func plane(x, y float64) float64 { return 1 + 2*x - 3*y }

func smooth(x, y float64) float64 { return math.Sin(2*x) * math.Cos(1.5*y) }

var allSchemes = []Scheme{Sibson(0), Sibson(1), Laplace(), Triangle(), Nearest()}

func TestUnitSquareScenario(t *testing.T) {
	tr, z := unitSquare(t)
	ip, err := New(tr, z)
	require.NoError(t, err)
	c := cache.New()

	for _, s := range []Scheme{Sibson(0), Laplace(), Triangle()} {
		v, err := ip.Evaluate(0.5, 0.5, s, c)
		require.NoError(t, err, s.String())
		assert.InDelta(t, 1.0, v, 1e-12, s.String())
	}

	// every site ties on weight, the lowest index (z = 0) wins
	v, err := ip.Evaluate(0.5, 0.5, Nearest(), c)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestExactAtSites(t *testing.T) {
	tr, z := createTestData(t, 7, smooth)
	ip, err := New(tr, z, WithLazyDerivatives(derivatives.DefaultOptions()))
	require.NoError(t, err)
	c := cache.New()

	for _, s := range allSchemes {
		for i := 0; i < tr.NumPoints(); i++ {
			p := tr.Point(i)
			v, err := ip.Evaluate(p.X, p.Y, s, c)
			require.NoError(t, err)
			assert.InDelta(t, z[i], v, 1e-12, "%s at site %d", s, i)
		}
	}
}

func TestSibson1LinearPrecision(t *testing.T) {
	tr, z := createTestData(t, 8, plane)
	grads := make([]models.Gradient, tr.NumPoints())
	for i := range grads {
		grads[i] = models.Gradient{X: 2, Y: -3}
	}
	ip, err := New(tr, z, WithGradients(grads))
	require.NoError(t, err)

	xs, ys := queryGrid(9, 0.2, 0.8)
	for _, s := range []Scheme{Sibson(0), Sibson(1), Laplace(), Triangle()} {
		vs, err := ip.EvaluateMany(xs, ys, s, false)
		require.NoError(t, err)
		for k := range vs {
			assert.InDelta(t, plane(xs[k], ys[k]), vs[k], 1e-10, "%s at (%g, %g)", s, xs[k], ys[k])
		}
	}
}

func TestSibson1WithGeneratedDerivatives(t *testing.T) {
	tr, z := createTestData(t, 8, plane)
	ip, err := New(tr, z, WithDerivatives(derivatives.DefaultOptions()), WithNumCores(2))
	require.NoError(t, err)

	xs, ys := queryGrid(6, 0.2, 0.8)
	vs, err := ip.EvaluateMany(xs, ys, Sibson(1), true)
	require.NoError(t, err)
	for k := range vs {
		assert.InDelta(t, plane(xs[k], ys[k]), vs[k], 1e-6)
	}
}

func TestSmoothFieldAccuracy(t *testing.T) {
	tr, z := createTestData(t, 12, smooth)
	ip, err := New(tr, z, WithLazyDerivatives(derivatives.DefaultOptions()))
	require.NoError(t, err)

	xs, ys := queryGrid(15, 0.15, 0.85)
	rmse := func(s Scheme) float64 {
		vs, err := ip.EvaluateMany(xs, ys, s, true)
		require.NoError(t, err)
		sq := make([]float64, len(vs))
		for k := range vs {
			d := vs[k] - smooth(xs[k], ys[k])
			sq[k] = d * d
		}
		return math.Sqrt(stat.Mean(sq, nil))
	}

	s0, s1, lap, tri := rmse(Sibson(0)), rmse(Sibson(1)), rmse(Laplace()), rmse(Triangle())
	assert.Less(t, s0, 0.02)
	assert.Less(t, lap, 0.02)
	assert.Less(t, tri, 0.02)
	assert.Less(t, s1, s0)
}

func TestOutOfRange(t *testing.T) {
	tr, z := unitSquare(t)
	grads := make([]models.Gradient, 4)
	ip, err := New(tr, z, WithGradients(grads))
	require.NoError(t, err)

	for _, s := range allSchemes {
		_, err := ip.Evaluate(1.5, 0.5, s, nil)
		assert.True(t, errors.Is(err, ErrOutOfRange), s.String())

		_, err = ip.EvaluateMany([]float64{0.5, -2}, []float64{0.5, 0.5}, s, false)
		assert.True(t, errors.Is(err, ErrOutOfRange), s.String())
	}
}

func TestExtrapolation(t *testing.T) {
	tr, z := unitSquare(t)
	ip, err := New(tr, z, WithExtrapolation())
	require.NoError(t, err)

	for _, s := range []Scheme{Sibson(0), Laplace(), Triangle()} {
		v, err := ip.Evaluate(1.5, 0.25, s, nil)
		require.NoError(t, err, s.String())
		assert.InDelta(t, 1.25, v, 1e-12, s.String())
	}
	v, err := ip.Evaluate(1.5, 0.25, Nearest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestMissingGradient(t *testing.T) {
	tr, z := unitSquare(t)
	ip, err := New(tr, z)
	require.NoError(t, err)

	_, err = ip.Evaluate(0.5, 0.5, Sibson(1), nil)
	assert.True(t, errors.Is(err, ErrMissingGradient))
	_, err = ip.EvaluateMany([]float64{0.5}, []float64{0.5}, Sibson(1), true)
	assert.True(t, errors.Is(err, ErrMissingGradient))
	_, _, err = ip.Differentiate(0.5, 0.5, 1, derivatives.Iterative, Sibson(0), nil)
	assert.True(t, errors.Is(err, ErrMissingGradient))
}

func TestInvalidConfiguration(t *testing.T) {
	tr, z := unitSquare(t)
	ip, err := New(tr, z)
	require.NoError(t, err)

	_, err = ip.Evaluate(0.5, 0.5, Sibson(2), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = ip.Evaluate(0.5, 0.5, Scheme{Kind: Kind(42)}, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = ip.EvaluateMany([]float64{0.1, 0.2}, []float64{0.1}, Laplace(), false)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	err = ip.EvaluateInto(make([]float64, 1), []float64{0.1, 0.2}, []float64{0.1, 0.2}, Laplace(), false)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = New(tr, z[:3])
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = New(tr, z, WithGradients(make([]models.Gradient, 2)))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = New(tr, z, WithLazyDerivatives(derivatives.Options{Order: 2, Alpha: 1.5}))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, err = New(tr, z, WithNumCores(-1))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestParallelMatchesSequential(t *testing.T) {
	tr, z := createTestData(t, 10, smooth)
	ip, err := New(tr, z, WithLazyDerivatives(derivatives.DefaultOptions()), WithNumCores(4))
	require.NoError(t, err)

	xs, ys := queryGrid(20, 0.1, 0.9)
	for _, s := range allSchemes {
		seq, err := ip.EvaluateMany(xs, ys, s, false)
		require.NoError(t, err)
		par, err := ip.EvaluateMany(xs, ys, s, true)
		require.NoError(t, err)
		assert.Equal(t, seq, par, s.String())

		dst := make([]float64, len(xs))
		require.NoError(t, ip.EvaluateInto(dst, xs, ys, s, true))
		assert.Equal(t, seq, dst, s.String())
	}

	for _, method := range []derivatives.Method{derivatives.Direct, derivatives.Iterative} {
		gSeq, hSeq, err := ip.DifferentiateMany(xs, ys, 2, method, Sibson(0), false)
		require.NoError(t, err)
		gPar, hPar, err := ip.DifferentiateMany(xs, ys, 2, method, Sibson(0), true)
		require.NoError(t, err)
		assert.Equal(t, gSeq, gPar)
		assert.Equal(t, hSeq, hPar)
	}
}

func TestLazyDerivativesGeneratedOnce(t *testing.T) {
	tr, z := createTestData(t, 8, smooth)
	var (
		mu    sync.Mutex
		calls int
	)
	ip, err := New(tr, z,
		WithLazyDerivatives(derivatives.DefaultOptions()),
		WithNumCores(1),
		WithProgress(func(completed, total int, message string) {
			mu.Lock()
			defer mu.Unlock()
			if message == "Estimating gradients" {
				calls++
			}
		}))
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	var wg sync.WaitGroup
	results := make([]float64, 8)
	for k := range results {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			v, err := ip.Evaluate(0.43, 0.61, Sibson(1), nil)
			assert.NoError(t, err)
			results[k] = v
		}(k)
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	for _, v := range results[1:] {
		assert.Equal(t, results[0], v)
	}

	g, err := ip.Gradients()
	require.NoError(t, err)
	assert.Len(t, g, tr.NumPoints())
	h, err := ip.Hessians()
	require.NoError(t, err)
	assert.Len(t, h, tr.NumPoints())
}

func TestDifferentiateLinear(t *testing.T) {
	tr, z := createTestData(t, 8, plane)
	ip, err := New(tr, z, WithLazyDerivatives(derivatives.DefaultOptions()))
	require.NoError(t, err)
	c := cache.New()

	for _, method := range []derivatives.Method{derivatives.Direct, derivatives.Iterative} {
		for _, order := range []int{1, 2} {
			g, h, err := ip.Differentiate(0.46, 0.53, order, method, Sibson(0), c)
			require.NoError(t, err)
			assert.InDelta(t, 2.0, g.X, 1e-8, "%s order %d", method, order)
			assert.InDelta(t, -3.0, g.Y, 1e-8, "%s order %d", method, order)
			assert.InDelta(t, 0.0, h.XX, 1e-6)
			assert.InDelta(t, 0.0, h.YY, 1e-6)
			assert.InDelta(t, 0.0, h.XY, 1e-6)
		}
	}

	gs, hs, err := ip.DifferentiateMany([]float64{0.3, 0.7}, []float64{0.4, 0.6}, 1, derivatives.Direct, Laplace(), false)
	require.NoError(t, err)
	assert.Nil(t, hs)
	for _, g := range gs {
		assert.InDelta(t, 2.0, g.X, 1e-8)
		assert.InDelta(t, -3.0, g.Y, 1e-8)
	}

	_, _, err = ip.Differentiate(0.5, 0.5, 3, derivatives.Direct, Sibson(0), c)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	_, _, err = ip.Differentiate(4, 0.5, 1, derivatives.Direct, Sibson(0), c)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestSuppliedHessians(t *testing.T) {
	tr, z := unitSquare(t)
	h := []models.Hessian{{XX: 1}, {XX: 2}, {XX: 3}, {XX: 4}}
	ip, err := New(tr, z, WithHessians(h))
	require.NoError(t, err)
	got, err := ip.Hessians()
	require.NoError(t, err)
	assert.Equal(t, h, got)
	_, err = ip.Gradients()
	assert.True(t, errors.Is(err, ErrMissingGradient))
}

func TestScheme(t *testing.T) {
	names := map[string]Kind{"sibson": KindSibson, "Laplace": KindLaplace, " triangle ": KindTriangle, "NEAREST": KindNearest}
	for name, want := range names {
		k, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, want, k)
	}
	_, err := ParseKind("kriging")
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	assert.Equal(t, "sibson(1)", Sibson(1).String())
	assert.Equal(t, "laplace", Laplace().String())
	assert.NoError(t, Nearest().Validate())
	assert.NoError(t, Scheme{Kind: KindTriangle, D: 5}.Validate())
	assert.Error(t, Sibson(-1).Validate())
}
