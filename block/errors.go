package block

import "fmt"

// SingularBlockError is returned when a block can not be inverted within
// numerical tolerance. Element is -1 unless the caller knows which mesh
// element the block belongs to.
type SingularBlockError struct {
	Element int
	Rank    int
	// Measure is |a| for r = 1 and the condition number estimate for
	// larger blocks.
	Measure float64
}

func (e *SingularBlockError) Error() string {
	if e.Element < 0 {
		return fmt.Sprintf("block: singular %dx%d block (measure %8.5e)", e.Rank, e.Rank, e.Measure)
	}
	return fmt.Sprintf("block: singular %dx%d block at element %d (measure %8.5e)",
		e.Rank, e.Rank, e.Element, e.Measure)
}
