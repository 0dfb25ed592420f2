package common

import "testing"

func TestMedian(t *testing.T) {
	for _, c := range []struct {
		in  []int
		out float64
	}{
		{[]int{5, 3, 4, 2, 1}, 3},
		{[]int{6, 3, 2, 4, 5, 1}, 3.5},
		{[]int{1}, 1},
	} {
		got := Median(c.in)
		if got != c.out {
			t.Errorf("Median(%d) => %v != %v", c.in, got, c.out)
		}
	}
	m := Median([]int{})
	if m != 0 {
		t.Errorf("Empty slice should have returned 0")
	}
}
