package projections

import (
	"context"

	"chapel/internal/application/listutil"
	"chapel/internal/domain/attendance"
)

// HistoryQuery carries query parameters. Empty fields mean "no filter".
type HistoryQuery struct {
	From     string
	To       string
	Type     string
	MemberID int64
	Page     *listutil.PageParams // nil returns every matching row
}

// HistoryResult carries the query result.
type HistoryResult struct {
	Entries []attendance.HistoryEntry
	Page    *listutil.PageInfo
}

// HistoryStore reads joined history rows.
type HistoryStore interface {
	ListHistory(ctx context.Context, filter attendance.HistoryFilter) ([]attendance.HistoryEntry, error)
	CountHistory(ctx context.Context, filter attendance.HistoryFilter) (int, error)
}

// QueryHistoryDeps holds dependencies for QueryHistory.
type QueryHistoryDeps struct {
	AttendanceStore HistoryStore
}

// QueryHistory returns records joined with member identity, newest date
// first then by last name. An unfiltered query returns the full table.
// PRE: From/To, when set, are YYYY-MM-DD with From <= To
// POST: No mutation
func QueryHistory(ctx context.Context, query HistoryQuery, deps QueryHistoryDeps) (HistoryResult, error) {
	filter, err := historyFilter(query)
	if err != nil {
		return HistoryResult{}, err
	}

	if query.Page == nil {
		entries, err := deps.AttendanceStore.ListHistory(ctx, filter)
		if err != nil {
			return HistoryResult{}, err
		}
		return HistoryResult{Entries: entries}, nil
	}

	total, err := deps.AttendanceStore.CountHistory(ctx, filter)
	if err != nil {
		return HistoryResult{}, err
	}
	filter.Limit = query.Page.PerPage
	filter.Offset = query.Page.Offset()
	entries, err := deps.AttendanceStore.ListHistory(ctx, filter)
	if err != nil {
		return HistoryResult{}, err
	}
	info := listutil.NewPageInfo(query.Page.Page, query.Page.PerPage, total)
	return HistoryResult{Entries: entries, Page: &info}, nil
}

func historyFilter(q HistoryQuery) (attendance.HistoryFilter, error) {
	var f attendance.HistoryFilter
	var err error
	if q.From != "" {
		if f.From, err = attendance.ParseDate(q.From); err != nil {
			return f, err
		}
	}
	if q.To != "" {
		if f.To, err = attendance.ParseDate(q.To); err != nil {
			return f, err
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return f, attendance.ErrInvalidRange
	}
	if f.Type, err = attendance.ParseOptionalServiceType(q.Type); err != nil {
		return f, err
	}
	if q.MemberID < 0 {
		return f, attendance.ErrInvalidMember
	}
	f.MemberID = q.MemberID
	return f, nil
}
