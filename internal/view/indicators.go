package view

import (
	"errors"
	"fmt"

	"stockdash/internal/domain"
)

// ErrCapacityExceeded is returned when a third indicator is requested.
var ErrCapacityExceeded = errors.New("at most 2 moving averages can be shown")

// ErrNotInCatalog is returned for a window that is not offered to the user.
var ErrNotInCatalog = errors.New("moving-average window not in catalog")

// IndicatorSet is an ordered set of at most two moving-average windows,
// kept in ascending order. It is a value type; Toggle returns a new set.
type IndicatorSet struct {
	windows [domain.MaxIndicators]int
	n       int
}

// NewIndicatorSet builds a set from catalog windows. Duplicates collapse.
func NewIndicatorSet(windows ...int) (IndicatorSet, error) {
	var s IndicatorSet
	for _, w := range windows {
		if !domain.InCatalog(w) {
			return IndicatorSet{}, fmt.Errorf("%w: %d", ErrNotInCatalog, w)
		}
		if s.Contains(w) {
			continue
		}
		next, err := s.Toggle(w)
		if err != nil {
			return IndicatorSet{}, err
		}
		s = next
	}
	return s, nil
}

// Len returns the number of selected windows.
func (s IndicatorSet) Len() int { return s.n }

// Windows returns the selected windows in ascending order.
func (s IndicatorSet) Windows() []int {
	out := make([]int, s.n)
	copy(out, s.windows[:s.n])
	return out
}

// Contains reports whether w is selected.
func (s IndicatorSet) Contains(w int) bool {
	return s.Index(w) >= 0
}

// Index returns w's position in the set, which is also its palette index,
// or -1.
func (s IndicatorSet) Index(w int) int {
	for i := 0; i < s.n; i++ {
		if s.windows[i] == w {
			return i
		}
	}
	return -1
}

// Toggle removes w when selected, otherwise adds it. Adding to a full set
// fails with ErrCapacityExceeded and returns s unchanged.
func (s IndicatorSet) Toggle(w int) (IndicatorSet, error) {
	if i := s.Index(w); i >= 0 {
		copy(s.windows[i:], s.windows[i+1:s.n])
		s.n--
		s.windows[s.n] = 0
		return s, nil
	}
	if s.n >= domain.MaxIndicators {
		return s, ErrCapacityExceeded
	}
	i := s.n
	for i > 0 && s.windows[i-1] > w {
		s.windows[i] = s.windows[i-1]
		i--
	}
	s.windows[i] = w
	s.n++
	return s, nil
}

func (s IndicatorSet) String() string {
	return fmt.Sprint(s.Windows())
}
