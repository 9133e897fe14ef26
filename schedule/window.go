package schedule

import "math"

// DayWindow is a contiguous day interval [Start, End], 1-based inclusive.
// The zero value is invalid; build one through Normalize.
type DayWindow struct {
	Start int
	End   int
}

// Valid reports whether the window satisfies Start >= 1 and End >= Start.
func (w DayWindow) Valid() bool {
	return w.Start >= 1 && w.End >= w.Start
}

// Len returns the number of days covered, or 0 for an invalid window.
func (w DayWindow) Len() int {
	if !w.Valid() {
		return 0
	}
	return w.End - w.Start + 1
}

// Contains reports whether day falls inside the window.
func (w DayWindow) Contains(day int) bool {
	return w.Valid() && day >= w.Start && day <= w.End
}

// Days returns the covered days in ascending order, nil for an invalid
// window.
func (w DayWindow) Days() []int {
	if !w.Valid() {
		return nil
	}
	days := make([]int, 0, w.Len())
	for d := w.Start; d <= w.End; d++ {
		days = append(days, d)
	}
	return days
}

// Normalize derives a valid window from raw numeric input, or reports
// not-ready. Input comes straight from user entry and may be non-finite,
// fractional, below 1, or inverted. An inverted range is not an error:
// End is clamped up to Start. Not-ready simply withholds the fetch
// downstream; no request is ever issued with an invalid range.
func Normalize(start, end float64) (DayWindow, bool) {
	s, ok := toDay(start)
	if !ok || s < 1 {
		return DayWindow{}, false
	}
	e, ok := toDay(end)
	if !ok || e < 1 {
		return DayWindow{}, false
	}
	if e < s {
		e = s
	}
	return DayWindow{Start: s, End: e}, true
}

func toDay(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(math.Trunc(v)), true
}
