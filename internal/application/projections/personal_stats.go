package projections

import (
	"context"
	"math"
	"sort"
	"time"

	"chapel/internal/domain/account"
	"chapel/internal/domain/attendance"
)

// Summary counts a member's records in a window.
type Summary struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Rate    int `json:"rate"` // whole percent
}

// Streaks holds the current and best present runs.
type Streaks struct {
	Current int `json:"current"`
	Best    int `json:"best"`
}

// MonthEntry is one record inside a month group.
type MonthEntry struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Type   string `json:"type"`
}

// HeatmapCell aggregates every record on one day.
type HeatmapCell struct {
	Total   int `json:"total"`
	Present int `json:"present"`
}

// DayEntry is one record on a single day.
type DayEntry struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// MemberRecordStore reads one member's records.
type MemberRecordStore interface {
	ListByMember(ctx context.Context, memberID int64, filter attendance.MemberFilter) ([]attendance.Record, error)
}

// PersonalStatsQuery carries the viewer and the analytics parameters.
// Range applies to summary, streaks and months; Year to the heatmap;
// Date to day detail.
type PersonalStatsQuery struct {
	Identity account.Identity
	Range    string
	Type     string
	Year     string
	Date     string
}

// PersonalStatsDeps holds dependencies for the personal analytics projections.
type PersonalStatsDeps struct {
	MemberStore     ResolveMemberStore
	AttendanceStore MemberRecordStore
	Now             func() time.Time // optional, defaults to time.Now
	Location        *time.Location   // optional, defaults to UTC
}

// QueryPersonalSummary returns the viewer's summary over the selected range.
// PRE: Range parses via attendance.ParseRange, Type is empty or a service type
// POST: A viewer without a member gets a zeroed summary
func QueryPersonalSummary(ctx context.Context, query PersonalStatsQuery, deps PersonalStatsDeps) (Summary, error) {
	records, err := personalRecords(ctx, query, deps)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}

// QueryPersonalStreaks returns the viewer's current and best streaks.
func QueryPersonalStreaks(ctx context.Context, query PersonalStatsQuery, deps PersonalStatsDeps) (Streaks, error) {
	records, err := personalRecords(ctx, query, deps)
	if err != nil {
		return Streaks{}, err
	}
	return Streaks{Current: CurrentStreak(records), Best: BestStreak(records)}, nil
}

// QueryPersonalMonths groups the viewer's records by "YYYY-MM".
// POST: Never returns a nil map
func QueryPersonalMonths(ctx context.Context, query PersonalStatsQuery, deps PersonalStatsDeps) (map[string][]MonthEntry, error) {
	records, err := personalRecords(ctx, query, deps)
	if err != nil {
		return nil, err
	}
	return GroupByMonth(records), nil
}

// QueryPersonalHeatmap aggregates the viewer's records per day over one
// calendar year. An empty Year means the current year.
// POST: Never returns a nil map
func QueryPersonalHeatmap(ctx context.Context, query PersonalStatsQuery, deps PersonalStatsDeps) (map[string]HeatmapCell, error) {
	year := today(deps).Year()
	if query.Year != "" {
		y, err := attendance.ParseYear(query.Year)
		if err != nil {
			return nil, err
		}
		year = y
	}
	typ, err := attendance.ParseOptionalServiceType(query.Type)
	if err != nil {
		return nil, err
	}
	records, err := memberRecords(ctx, query.Identity, attendance.MemberFilter{Window: attendance.YearWindow(year), Type: typ}, deps)
	if err != nil {
		return nil, err
	}
	return BuildHeatmap(records), nil
}

// QueryPersonalDay lists every record the viewer has on one date.
// PRE: Date is YYYY-MM-DD
// POST: Never returns a nil slice
func QueryPersonalDay(ctx context.Context, query PersonalStatsQuery, deps PersonalStatsDeps) ([]DayEntry, error) {
	date, err := attendance.ParseDate(query.Date)
	if err != nil {
		return nil, err
	}
	typ, err := attendance.ParseOptionalServiceType(query.Type)
	if err != nil {
		return nil, err
	}
	records, err := memberRecords(ctx, query.Identity, attendance.MemberFilter{Window: attendance.DayWindow(date), Type: typ}, deps)
	if err != nil {
		return nil, err
	}
	return DayDetail(records), nil
}

// Summarize computes totals and the rounded present rate.
// INVARIANT: Present + Absent == Total; Rate is 0 when Total is 0
func Summarize(records []attendance.Record) Summary {
	var s Summary
	s.Total = len(records)
	for _, r := range records {
		if r.IsPresent() {
			s.Present++
		}
	}
	s.Absent = s.Total - s.Present
	if s.Total > 0 {
		s.Rate = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
	}
	return s
}

// CurrentStreak counts leading present records, newest first.
func CurrentStreak(records []attendance.Record) int {
	sorted := sortRecords(records, true)
	n := 0
	for _, r := range sorted {
		if !r.IsPresent() {
			break
		}
		n++
	}
	return n
}

// BestStreak returns the longest run of present records, oldest first.
// Calendar gaps without records do not break a run; only an absent row does.
func BestStreak(records []attendance.Record) int {
	best, run := 0, 0
	for _, r := range sortRecords(records, false) {
		if !r.IsPresent() {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	return best
}

// GroupByMonth buckets records by "YYYY-MM" in ascending order within each month.
func GroupByMonth(records []attendance.Record) map[string][]MonthEntry {
	groups := make(map[string][]MonthEntry)
	for _, r := range sortRecords(records, false) {
		month := r.Date[:7]
		groups[month] = append(groups[month], MonthEntry{
			Date:   r.Date,
			Status: string(r.Status),
			Type:   string(r.Type),
		})
	}
	return groups
}

// BuildHeatmap counts records and present records per date, across types.
func BuildHeatmap(records []attendance.Record) map[string]HeatmapCell {
	cells := make(map[string]HeatmapCell)
	for _, r := range records {
		c := cells[r.Date]
		c.Total++
		if r.IsPresent() {
			c.Present++
		}
		cells[r.Date] = c
	}
	return cells
}

// DayDetail lists records ordered by type.
func DayDetail(records []attendance.Record) []DayEntry {
	out := make([]DayEntry, 0, len(records))
	for _, r := range sortRecords(records, false) {
		out = append(out, DayEntry{Type: string(r.Type), Status: string(r.Status), Notes: r.Notes})
	}
	return out
}

// sortRecords returns a copy ordered by date (descending when newestFirst)
// with ties on the same date ordered by type.
func sortRecords(records []attendance.Record, newestFirst bool) []attendance.Record {
	sorted := make([]attendance.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Date != b.Date {
			if newestFirst {
				return a.Date > b.Date
			}
			return a.Date < b.Date
		}
		return a.Type < b.Type
	})
	return sorted
}

func personalRecords(ctx context.Context, query PersonalStatsQuery, deps PersonalStatsDeps) ([]attendance.Record, error) {
	selector, err := attendance.ParseRange(query.Range)
	if err != nil {
		return nil, err
	}
	typ, err := attendance.ParseOptionalServiceType(query.Type)
	if err != nil {
		return nil, err
	}
	filter := attendance.MemberFilter{Window: selector.Resolve(today(deps)), Type: typ}
	return memberRecords(ctx, query.Identity, filter, deps)
}

// memberRecords resolves the viewer and reads their records. A viewer with
// no member yields an empty, non-nil slice.
func memberRecords(ctx context.Context, identity account.Identity, filter attendance.MemberFilter, deps PersonalStatsDeps) ([]attendance.Record, error) {
	m, found, err := QueryResolveMember(ctx, identity, ResolveMemberDeps{MemberStore: deps.MemberStore})
	if err != nil {
		return nil, err
	}
	if !found {
		return []attendance.Record{}, nil
	}
	records, err := deps.AttendanceStore.ListByMember(ctx, m.ID, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return records, nil
}

func today(deps PersonalStatsDeps) time.Time {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}
