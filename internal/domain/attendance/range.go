package attendance

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// RangeKind names a logical analytics window.
type RangeKind string

// Range kinds
const (
	RangeLast30Days RangeKind = "30d"
	RangeLast90Days RangeKind = "90d"
	RangeYear       RangeKind = "year"
	RangeAll        RangeKind = "all"
)

// MinYear and MaxYear bound year selectors.
const (
	MinYear = 1900
	MaxYear = 9999
)

// ErrInvalidRange is returned for unknown range selectors or inverted windows.
var ErrInvalidRange = errors.New("range must be one of: 30d, 90d, all, year:YYYY")

// RangeSelector is a parsed logical range.
type RangeSelector struct {
	Kind RangeKind
	Year int // only for RangeYear
}

// Window is a concrete inclusive [From, To] date window.
// An unbounded window matches every date.
type Window struct {
	From    string
	To      string
	Bounded bool
}

// ParseRange parses "30d", "90d", "all", "year:2024" or a bare "2024".
// An empty selector means all-time.
// PRE: none
// POST: Returns ErrInvalidRange for anything else
func ParseRange(s string) (RangeSelector, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", string(RangeAll):
		return RangeSelector{Kind: RangeAll}, nil
	case string(RangeLast30Days):
		return RangeSelector{Kind: RangeLast30Days}, nil
	case string(RangeLast90Days):
		return RangeSelector{Kind: RangeLast90Days}, nil
	}
	s = strings.TrimPrefix(s, "year:")
	year, err := ParseYear(s)
	if err != nil {
		return RangeSelector{}, ErrInvalidRange
	}
	return RangeSelector{Kind: RangeYear, Year: year}, nil
}

// ParseYear validates a four-digit calendar year.
func ParseYear(s string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || year < MinYear || year > MaxYear {
		return 0, ErrInvalidRange
	}
	return year, nil
}

// Resolve converts the selector into a concrete window relative to today.
// PRE: today carries the viewer's location
// POST: 30d/90d end on today inclusive; year covers Jan 1 to Dec 31
func (r RangeSelector) Resolve(today time.Time) Window {
	switch r.Kind {
	case RangeLast30Days:
		return Window{From: FormatDate(today.AddDate(0, 0, -30)), To: FormatDate(today), Bounded: true}
	case RangeLast90Days:
		return Window{From: FormatDate(today.AddDate(0, 0, -90)), To: FormatDate(today), Bounded: true}
	case RangeYear:
		return YearWindow(r.Year)
	}
	return Window{}
}

// YearWindow covers one calendar year.
func YearWindow(year int) Window {
	y := strconv.Itoa(year)
	for len(y) < 4 {
		y = "0" + y
	}
	return Window{From: y + "-01-01", To: y + "-12-31", Bounded: true}
}

// DayWindow covers exactly one date.
func DayWindow(date string) Window {
	return Window{From: date, To: date, Bounded: true}
}
