package sampler

import "math/rand/v2"

// indexPool holds the corpus indices that have not been drawn yet. Draw picks
// a uniform live slot and fills the hole with the last live index, so removal
// is O(1) and an index leaves the pool the moment it is drawn.
type indexPool struct {
	live []int
	rng  *rand.Rand
}

func newIndexPool(size int, seed int64) *indexPool {
	live := make([]int, size)
	for i := range live {
		live[i] = i
	}
	return &indexPool{
		live: live,
		rng:  newRand(seed),
	}
}

// newRand returns the PCG generator used for every draw. Both PCG words are
// derived from the seed so that a given seed always yields the same stream.
func newRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

func (p *indexPool) Len() int {
	return len(p.live)
}

// Draw removes and returns one index. It panics on an empty pool; callers
// check Len first.
func (p *indexPool) Draw() int {
	slot := p.rng.IntN(len(p.live))
	idx := p.live[slot]
	last := len(p.live) - 1
	p.live[slot] = p.live[last]
	p.live = p.live[:last]
	return idx
}
