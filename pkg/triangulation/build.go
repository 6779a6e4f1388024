package triangulation

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"nninterp/internal/models"
)

// superScales are the successive sizes of the enclosing super triangle,
// relative to the extent of the data. A larger triangle is only tried when
// a smaller one leaves a hull vertex uncovered.
var superScales = []float64{1e2, 1e4, 1e6}

type bwTri struct {
	v     [3]int
	alive bool
}

// New builds the Delaunay triangulation of points with Bowyer-Watson
// insertion inside a super triangle, then closes any hull concavities left
// by the super triangle and legalises the result with Lawson flips.
//
// Points must be distinct and not all collinear.
func New(points []models.Point) (*Triangulation, error) {
	n := len(points)
	if n < 3 {
		return nil, errors.Wrapf(models.ErrInvalidConfiguration, "need at least 3 points, got %d", n)
	}
	if i, j, dup := findDuplicate(points); dup {
		return nil, errors.Wrapf(models.ErrInvalidConfiguration, "points %d and %d coincide", i, j)
	}
	lo, hi := boundingBox(points)
	extent := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if extent == 0 || math.IsInf(extent, 0) || math.IsNaN(extent) {
		return nil, errors.Wrap(models.ErrInvalidConfiguration, "degenerate point extent")
	}
	if allCollinear(points) {
		return nil, errors.Wrap(models.ErrInvalidConfiguration, "points are collinear")
	}

	tr := &Triangulation{
		points: points,
		scale:  math.Hypot(hi.X-lo.X, hi.Y-lo.Y),
	}
	for _, s := range superScales {
		tris, ok := bowyerWatson(points, lo, hi, s*extent)
		if ok {
			tr.triangles = tris
			break
		}
	}
	if tr.triangles == nil {
		return nil, errors.Wrap(models.ErrInvalidConfiguration, "could not triangulate points near the hull")
	}
	tr.fillHull()
	tr.legalize()
	tr.index()
	return tr, nil
}

// FromTriangles wraps an externally built triangulation. Triangles are
// reoriented counter-clockwise; no Delaunay check is made.
func FromTriangles(points []models.Point, triangles [][3]int) (*Triangulation, error) {
	if len(points) < 3 || len(triangles) == 0 {
		return nil, errors.Wrap(models.ErrInvalidConfiguration, "empty triangulation")
	}
	lo, hi := boundingBox(points)
	tr := &Triangulation{
		points:    points,
		triangles: make([][3]int, len(triangles)),
		scale:     math.Hypot(hi.X-lo.X, hi.Y-lo.Y),
	}
	used := make([]bool, len(points))
	for t, tri := range triangles {
		for _, v := range tri {
			if v < 0 || v >= len(points) {
				return nil, errors.Wrapf(models.ErrInvalidConfiguration, "triangle %d references vertex %d", t, v)
			}
			used[v] = true
		}
		o := Orient(points[tri[0]], points[tri[1]], points[tri[2]])
		if o == 0 {
			return nil, errors.Wrapf(models.ErrInvalidConfiguration, "triangle %d is degenerate", t)
		}
		if o < 0 {
			tri[1], tri[2] = tri[2], tri[1]
		}
		tr.triangles[t] = tri
	}
	for i, u := range used {
		if !u {
			return nil, errors.Wrapf(models.ErrInvalidConfiguration, "vertex %d is not in any triangle", i)
		}
	}
	tr.index()
	return tr, nil
}

// bowyerWatson inserts the points one at a time. Each insertion removes a
// connected cavity grown from the triangle containing the point across
// shared edges. A neighbour joins only when the point is strictly inside its
// circumcircle and the cavity stays star-shaped from the point, so the new
// fan of triangles never overlaps. Co-circular neighbours stay out; the
// edges they leave behind are settled by legalize.
func bowyerWatson(points []models.Point, lo, hi models.Point, size float64) ([][3]int, bool) {
	n := len(points)
	cx, cy := 0.5*(lo.X+hi.X), 0.5*(lo.Y+hi.Y)
	all := make([]models.Point, n, n+3)
	copy(all, points)
	all = append(all,
		models.Point{X: cx - 2*size, Y: cy - size},
		models.Point{X: cx + 2*size, Y: cy - size},
		models.Point{X: cx, Y: cy + 2*size},
	)
	tris := []bwTri{{v: [3]int{n, n + 1, n + 2}, alive: true}}
	owner := make(map[edge]int)
	link := func(t int) {
		v := tris[t].v
		for k := 0; k < 3; k++ {
			owner[edge{v[k], v[(k+1)%3]}] = t
		}
	}
	link(0)

	inCavity := make(map[int]bool)
	var cavity, stack []int
	var rim []edge
	last := 0
	for p := 0; p < n; p++ {
		pt := all[p]
		for k := range inCavity {
			delete(inCavity, k)
		}
		cavity, stack = cavity[:0], stack[:0]
		add := func(t int) {
			inCavity[t] = true
			cavity = append(cavity, t)
			stack = append(stack, t)
		}

		t := locateInsertion(all, tris, owner, last, pt)
		add(t)
		// a point on an edge of t takes the triangle across with it
		v := tris[t].v
		for k := 0; k < 3; k++ {
			a, b := v[k], v[(k+1)%3]
			if Orient(all[a], all[b], pt) <= orientTolerance(all[a], all[b], pt) {
				if s, ok := owner[edge{b, a}]; ok && !inCavity[s] {
					add(s)
				}
			}
		}
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v := tris[s].v
			for k := 0; k < 3; k++ {
				nb, ok := owner[edge{v[(k+1)%3], v[k]}]
				if !ok || inCavity[nb] {
					continue
				}
				w := tris[nb].v
				if !InCircumcircle(all[w[0]], all[w[1]], all[w[2]], pt) {
					continue
				}
				if !keepsStar(all, w, owner, inCavity, pt) {
					continue
				}
				add(nb)
			}
		}

		rim = rim[:0]
		for _, s := range cavity {
			v := tris[s].v
			for k := 0; k < 3; k++ {
				a, b := v[k], v[(k+1)%3]
				if nb, ok := owner[edge{b, a}]; !ok || !inCavity[nb] {
					rim = append(rim, edge{a, b})
				}
			}
		}
		for _, s := range cavity {
			v := tris[s].v
			for k := 0; k < 3; k++ {
				delete(owner, edge{v[k], v[(k+1)%3]})
			}
			tris[s].alive = false
		}
		for _, e := range rim {
			tris = append(tris, bwTri{v: [3]int{e[0], e[1], p}, alive: true})
			link(len(tris) - 1)
		}
		last = len(tris) - 1
	}

	out := make([][3]int, 0, len(tris))
	covered := make([]bool, n)
	for _, t := range tris {
		if !t.alive || t.v[0] >= n || t.v[1] >= n || t.v[2] >= n {
			continue
		}
		out = append(out, t.v)
		for _, v := range t.v {
			covered[v] = true
		}
	}
	for _, c := range covered {
		if !c {
			return nil, false
		}
	}
	return out, true
}

// keepsStar reports whether every edge of tri that would end up on the
// cavity boundary has p strictly on its inner side.
func keepsStar(pts []models.Point, tri [3]int, owner map[edge]int, inCavity map[int]bool, p models.Point) bool {
	for k := 0; k < 3; k++ {
		a, b := tri[k], tri[(k+1)%3]
		if s, ok := owner[edge{b, a}]; ok && inCavity[s] {
			continue
		}
		if Orient(pts[a], pts[b], p) <= orientTolerance(pts[a], pts[b], p) {
			return false
		}
	}
	return true
}

// orientTolerance is the Orient value under which p counts as on the line
// through a and b.
func orientTolerance(a, b, p models.Point) float64 {
	return 1e-12 * a.Dist(b) * math.Max(a.Dist(p), b.Dist(p))
}

// locateInsertion walks from triangle t towards p and returns a live
// triangle containing it, boundary inclusive.
func locateInsertion(pts []models.Point, tris []bwTri, owner map[edge]int, t int, p models.Point) int {
walk:
	for steps := 0; steps < len(tris); steps++ {
		v := tris[t].v
		for k := 0; k < 3; k++ {
			a, b := v[k], v[(k+1)%3]
			if Orient(pts[a], pts[b], p) < 0 {
				if s, ok := owner[edge{b, a}]; ok {
					t = s
					continue walk
				}
			}
		}
		return t
	}
	for s := range tris {
		if tris[s].alive && contains(pts, tris[s].v, p) {
			return s
		}
	}
	return t
}

func contains(pts []models.Point, v [3]int, p models.Point) bool {
	return Orient(pts[v[0]], pts[v[1]], p) >= 0 &&
		Orient(pts[v[1]], pts[v[2]], p) >= 0 &&
		Orient(pts[v[2]], pts[v[0]], p) >= 0
}

// fillHull adds triangles across reflex boundary vertices until the
// boundary is convex.
func (tr *Triangulation) fillHull() {
	for {
		directed := make(map[edge]bool, 3*len(tr.triangles))
		for _, tri := range tr.triangles {
			for k := 0; k < 3; k++ {
				directed[edge{tri[k], tri[(k+1)%3]}] = true
			}
		}
		next := make(map[int]int)
		prev := make(map[int]int)
		for e := range directed {
			if !directed[edge{e[1], e[0]}] {
				next[e[0]] = e[1]
				prev[e[1]] = e[0]
			}
		}
		// visit boundary vertices in index order so the fill is reproducible
		order := make([]int, 0, len(next))
		for b := range next {
			order = append(order, b)
		}
		sort.Ints(order)
		added := false
		for _, b := range order {
			a, c := prev[b], next[b]
			if a == c {
				continue
			}
			if Orient(tr.points[a], tr.points[b], tr.points[c]) < 0 {
				tr.triangles = append(tr.triangles, [3]int{a, c, b})
				added = true
				break
			}
		}
		if !added {
			return
		}
	}
}

// legalize flips non-Delaunay edges until every interior edge passes the
// strict incircle test.
func (tr *Triangulation) legalize() {
	owner := make(map[edge]int, 3*len(tr.triangles))
	for t, tri := range tr.triangles {
		for k := 0; k < 3; k++ {
			owner[edge{tri[k], tri[(k+1)%3]}] = t
		}
	}
	eps := 1e-12 * math.Pow(tr.scale, 4)
	stack := make([]edge, 0, len(owner))
	for e := range owner {
		if e[0] < e[1] {
			stack = append(stack, e)
		}
	}
	sort.Slice(stack, func(i, j int) bool {
		if stack[i][0] != stack[j][0] {
			return stack[i][0] < stack[j][0]
		}
		return stack[i][1] < stack[j][1]
	})

	limit := 64 * (len(stack) + 1)
	for len(stack) > 0 && limit > 0 {
		limit--
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		u, v := e[0], e[1]
		t, ok1 := owner[edge{u, v}]
		s, ok2 := owner[edge{v, u}]
		if !ok1 || !ok2 {
			continue
		}
		w := third(tr.triangles[t], u, v)
		x := third(tr.triangles[s], v, u)
		pu, pv, pw, px := tr.points[u], tr.points[v], tr.points[w], tr.points[x]
		if InCircle(pu, pv, pw, px) <= eps {
			continue
		}
		if Orient(pu, px, pw) <= 0 || Orient(px, pv, pw) <= 0 {
			continue
		}
		for _, tri := range [][3]int{tr.triangles[t], tr.triangles[s]} {
			for k := 0; k < 3; k++ {
				delete(owner, edge{tri[k], tri[(k+1)%3]})
			}
		}
		tr.triangles[t] = [3]int{u, x, w}
		tr.triangles[s] = [3]int{x, v, w}
		for _, id := range []int{t, s} {
			tri := tr.triangles[id]
			for k := 0; k < 3; k++ {
				owner[edge{tri[k], tri[(k+1)%3]}] = id
			}
		}
		stack = append(stack, edge{u, x}, edge{x, v}, edge{v, w}, edge{w, u})
	}
}

// third returns the vertex of tri that follows the directed edge u→v.
func third(tri [3]int, u, v int) int {
	for k := 0; k < 3; k++ {
		if tri[k] == u && tri[(k+1)%3] == v {
			return tri[(k+2)%3]
		}
	}
	panic("edge not in triangle")
}

func findDuplicate(points []models.Point) (int, int, bool) {
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		p, q := points[idx[a]], points[idx[b]]
		if p.X != q.X {
			return p.X < q.X
		}
		return p.Y < q.Y
	})
	for k := 1; k < len(idx); k++ {
		if points[idx[k]] == points[idx[k-1]] {
			i, j := idx[k-1], idx[k]
			if i > j {
				i, j = j, i
			}
			return i, j, true
		}
	}
	return 0, 0, false
}

func allCollinear(points []models.Point) bool {
	a := points[0]
	far, best := 1, 0.0
	for i := 1; i < len(points); i++ {
		if d := a.Dist2(points[i]); d > best {
			far, best = i, d
		}
	}
	b := points[far]
	tol := 1e-14 * best
	for _, c := range points {
		if math.Abs(Orient(a, b, c)) > tol {
			return false
		}
	}
	return true
}
