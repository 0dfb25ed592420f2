package peers

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

//Sampler keeps, among all the ids it has been shown, the one minimising a
//keyed hash. With a random key the retained id is a uniform sample of the
//distinct ids seen, however often each one was repeated.
type Sampler struct {
	key  uint64
	q    int
	min  uint64
	full bool
}

//NewSampler creates an empty sampler keyed with key
func NewSampler(key uint64) *Sampler {
	return &Sampler{key: key}
}

//Init empties the sampler and gives it a new key
func (s *Sampler) Init(key uint64) {
	s.key = key
	s.q = 0
	s.min = 0
	s.full = false
}

//Next shows id to the sampler
func (s *Sampler) Next(id int) {
	h := s.hash(id)
	if !s.full || h < s.min {
		s.q = id
		s.min = h
		s.full = true
	}
}

//Sample returns the retained id, and false if the sampler is empty
func (s *Sampler) Sample() (int, bool) {
	return s.q, s.full
}

func (s *Sampler) hash(id int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], s.key)
	binary.LittleEndian.PutUint64(buf[8:], uint64(id))
	return xxhash.Sum64(buf[:])
}
