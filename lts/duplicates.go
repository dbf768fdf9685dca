package lts

import (
	"errors"
	"fmt"
)

// MaxDuplicates bounds the copies of one mesh element on a rank. A copy layer
// element is duplicated once per neighboring partition, and a tetrahedron
// has four faces.
const MaxDuplicates = 4

// ErrTooManyDuplicates is returned when an element would need more than MaxDuplicates copies
var ErrTooManyDuplicates = errors.New("too many duplicates")

// DuplicateList holds the LTS ids of all local copies of one mesh element
type DuplicateList struct {
	ids   [MaxDuplicates]int
	count int
}

// Add appends a copy
func (d *DuplicateList) Add(ltsID int) error {
	if d.count == MaxDuplicates {
		return fmt.Errorf("adding lts id %d: %w (max %d)", ltsID, ErrTooManyDuplicates, MaxDuplicates)
	}
	d.ids[d.count] = ltsID
	d.count++
	return nil
}

// Count returns the number of copies
func (d DuplicateList) Count() int { return d.count }

// At returns copy i
func (d DuplicateList) At(i int) int {
	if i < 0 || i >= d.count {
		panic(fmt.Sprintf("duplicate index %d out of range [0,%d)", i, d.count))
	}
	return d.ids[i]
}

// All returns the copies as a slice
func (d DuplicateList) All() []int {
	return append([]int(nil), d.ids[:d.count]...)
}
