package parallel

// PartitionMap splits [0, MaxIndex) into ParallelDegree contiguous buckets.
// The first MaxIndex % ParallelDegree buckets hold one extra index, so bucket
// sizes differ by at most one.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int
}

// NewPartitionMap splits maxIndex indices over degree buckets. A degree below
// one is treated as one.
func NewPartitionMap(degree, maxIndex int) *PartitionMap {
	if degree < 1 {
		degree = 1
	}
	pm := &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: degree,
		Partitions:     make([][2]int, degree),
	}
	size, extra := maxIndex/degree, maxIndex%degree
	lo := 0
	for b := range pm.Partitions {
		hi := lo + size
		if b < extra {
			hi++
		}
		pm.Partitions[b] = [2]int{lo, hi}
		lo = hi
	}
	return pm
}

// Bucket returns the half-open index range of bucket b.
func (pm *PartitionMap) Bucket(b int) (lo, hi int) {
	return pm.Partitions[b][0], pm.Partitions[b][1]
}

// Size returns the number of indices in bucket b.
func (pm *PartitionMap) Size(b int) int {
	lo, hi := pm.Bucket(b)
	return hi - lo
}
