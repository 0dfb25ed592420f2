package common

import (
	"sort"
)

// Median gets the median of a slice of rounds. Even-sized inputs average the
// two middle values.
func Median(input []int) float64 {
	s := make([]int, len(input))
	copy(s, input)
	sort.Ints(s)

	l := len(s)
	if l == 0 {
		return 0
	} else if l%2 == 0 {
		mid := l/2 - 1
		return float64(s[mid]+s[mid+1]) / 2
	}

	return float64(s[l/2])
}
