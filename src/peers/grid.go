package peers

import (
	"math"
	"math/rand"
)

const (
	gridSpacing = 60.0
	gridMargin  = 50.0
	gridJitter  = 20.0
)

//Point is a position on the placement plane
type Point struct {
	X float64
	Y float64
}

//Grid places nodes on a square lattice, gridSpacing apart, each moved by a
//uniform jitter of at most gridJitter on both axes. Node i sits in column
//i % size and row i / size.
type Grid struct {
	size      int
	positions []Point
}

//NewGrid places n nodes using rng
func NewGrid(n int, rng *rand.Rand) *Grid {
	size := int(math.Ceil(math.Sqrt(float64(n))))
	g := &Grid{
		size:      size,
		positions: make([]Point, n),
	}
	for i := 0; i < n; i++ {
		x := i % size
		y := i / size
		g.positions[i] = Point{
			X: gridMargin + float64(x)*gridSpacing + jitter(rng),
			Y: gridMargin + float64(y)*gridSpacing + jitter(rng),
		}
	}
	return g
}

func jitter(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * gridJitter
}

//Len returns the number of placed nodes
func (g *Grid) Len() int {
	return len(g.positions)
}

//Position ...
func (g *Grid) Position(id int) Point {
	return g.positions[id]
}

//Distance returns the euclidean distance between two nodes
func (g *Grid) Distance(a, b int) float64 {
	pa, pb := g.positions[a], g.positions[b]
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
}

//Within returns the nodes closer than radius to id, in increasing id order.
//Only the lattice cells that can hold such nodes are scanned.
func (g *Grid) Within(id int, radius float64) []int {
	reach := int(math.Ceil((radius + 2*gridJitter) / gridSpacing))
	cx, cy := id%g.size, id/g.size

	res := []int{}
	for y := cy - reach; y <= cy+reach; y++ {
		if y < 0 || y >= g.size {
			continue
		}
		for x := cx - reach; x <= cx+reach; x++ {
			if x < 0 || x >= g.size {
				continue
			}
			peer := y*g.size + x
			if peer == id || peer >= len(g.positions) {
				continue
			}
			if g.Distance(id, peer) < radius {
				res = append(res, peer)
			}
		}
	}
	return res
}
