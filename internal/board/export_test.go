package board

import "fmt"

// sequentialIDs swaps the dish id generator for a counter for the duration of
// a test.
func sequentialIDs(t interface{ Cleanup(func()) }) {
	prev := newDishID
	n := 0
	newDishID = func() string {
		n++
		return fmt.Sprintf("dish-%d", n)
	}
	t.Cleanup(func() { newDishID = prev })
}
