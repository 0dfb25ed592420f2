package peers

import (
	"math/rand"
	"sort"
)

//IDSet is an insertion-ordered set of node ids. Iteration order only depends
//on the sequence of operations, which keeps simulations reproducible.
type IDSet struct {
	IDs   []int
	index map[int]int
}

/* Constructors */

//NewIDSet creates a new IDSet from a list of ids, ignoring duplicates
func NewIDSet(ids ...int) *IDSet {
	set := &IDSet{
		IDs:   []int{},
		index: make(map[int]int),
	}
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

/* Mutators */

//Add appends id unless already present and reports whether it was added
func (s *IDSet) Add(id int) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.IDs)
	s.IDs = append(s.IDs, id)
	return true
}

//Remove deletes id, preserving the order of the others, and reports whether
//it was present
func (s *IDSet) Remove(id int) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.IDs = append(s.IDs[:pos], s.IDs[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.IDs); i++ {
		s.index[s.IDs[i]] = i
	}
	return true
}

//Clear empties the set
func (s *IDSet) Clear() {
	s.IDs = []int{}
	s.index = make(map[int]int)
}

/* Queries */

//Contains ...
func (s *IDSet) Contains(id int) bool {
	_, ok := s.index[id]
	return ok
}

//Len returns the number of ids in the set
func (s *IDSet) Len() int {
	return len(s.IDs)
}

//Slice returns a copy of the ids in insertion order
func (s *IDSet) Slice() []int {
	res := make([]int, len(s.IDs))
	copy(res, s.IDs)
	return res
}

//Sorted returns a copy of the ids in increasing order
func (s *IDSet) Sorted() []int {
	res := s.Slice()
	sort.Ints(res)
	return res
}

//Sample returns k distinct ids picked uniformly with rng, or all of them in a
//random order when k >= Len
func (s *IDSet) Sample(rng *rand.Rand, k int) []int {
	return Sample(rng, s.IDs, k)
}

//Sample returns k distinct elements of ids picked uniformly with rng. ids is
//left untouched.
func Sample(rng *rand.Rand, ids []int, k int) []int {
	if k <= 0 || len(ids) == 0 {
		return []int{}
	}
	pool := make([]int, len(ids))
	copy(pool, ids)
	if k > len(pool) {
		k = len(pool)
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
