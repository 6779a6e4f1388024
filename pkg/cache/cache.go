// Package cache holds the scratch buffers a single evaluation worker reuses
// between calls.
package cache

import (
	"gonum.org/v1/gonum/mat"

	"nninterp/internal/models"
)

// Cache is the per-worker workspace. A Cache must only ever be used by one
// goroutine at a time; batch drivers allocate one per worker. Buffers grow
// to the largest neighbourhood seen and are never shrunk.
type Cache struct {
	// natural-neighbour scratch
	Envelope  []int
	Cavity    []int
	Indices   []int
	Weights   []float64
	Polygon   []models.Point
	Visited   map[int]struct{}
	Neighbors []int

	// least-squares scratch
	Ring       []int
	Offsets    []models.Point
	Targets    []float64
	RowWeights []float64
	Natural    []float64
	design     []float64
	rhs        []float64
	normal     []float64
	atb        []float64
	solution   []float64
	chol       mat.Cholesky
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{Visited: make(map[int]struct{})}
}

// NewPool returns n independent caches, one per worker.
func NewPool(n int) []*Cache {
	pool := make([]*Cache, n)
	for i := range pool {
		pool[i] = New()
	}
	return pool
}

// Reset clears the natural-neighbour buffers while keeping their capacity.
func (c *Cache) Reset() {
	c.Envelope = c.Envelope[:0]
	c.Cavity = c.Cavity[:0]
	c.Indices = c.Indices[:0]
	c.Weights = c.Weights[:0]
	c.Polygon = c.Polygon[:0]
	c.Neighbors = c.Neighbors[:0]
	for k := range c.Visited {
		delete(c.Visited, k)
	}
}

// Design returns a zeroed m×p matrix and a length-m right-hand side backed
// by the cache.
func (c *Cache) Design(m, p int) (*mat.Dense, *mat.VecDense) {
	c.design = grow(c.design, m*p)
	c.rhs = grow(c.rhs, m)
	return mat.NewDense(m, p, c.design), mat.NewVecDense(m, c.rhs)
}

// Normal returns a zeroed p×p symmetric matrix with length-p right-hand
// side and solution vectors, all backed by the cache.
func (c *Cache) Normal(p int) (*mat.SymDense, *mat.VecDense, *mat.VecDense) {
	c.normal = grow(c.normal, p*p)
	c.atb = grow(c.atb, p)
	c.solution = grow(c.solution, p)
	return mat.NewSymDense(p, c.normal), mat.NewVecDense(p, c.atb), mat.NewVecDense(p, c.solution)
}

// ResetFit clears the least-squares row buffers while keeping capacity.
func (c *Cache) ResetFit() {
	c.Ring = c.Ring[:0]
	c.Offsets = c.Offsets[:0]
	c.Targets = c.Targets[:0]
	c.RowWeights = c.RowWeights[:0]
	c.Natural = c.Natural[:0]
}

// Cholesky returns the cache's reusable factorisation.
func (c *Cache) Cholesky() *mat.Cholesky {
	return &c.chol
}

func grow(buf []float64, n int) []float64 {
	if cap(buf) < n {
		buf = make([]float64, n)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}
