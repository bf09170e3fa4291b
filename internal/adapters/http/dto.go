package web

import (
	"time"

	"chapel/internal/application/listutil"
	"chapel/internal/application/orchestrators"
	"chapel/internal/application/projections"
	"chapel/internal/domain/attendance"
)

// loginRequest is the body of POST /api/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// rosterItem is one typed roster line.
type rosterItem struct {
	MemberID int64  `json:"memberId"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

// toRosterItems keeps nil distinct from empty.
func toRosterItems(items []rosterItem) []orchestrators.RosterItem {
	if items == nil {
		return nil
	}
	out := make([]orchestrators.RosterItem, len(items))
	for i, it := range items {
		out[i] = orchestrators.RosterItem{MemberID: it.MemberID, Status: it.Status, Notes: it.Notes}
	}
	return out
}

type rosterLine struct {
	MemberID  int64  `json:"memberId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
	Recorded  bool   `json:"recorded"`
}

type rosterResponse struct {
	Date    string       `json:"date"`
	Type    string       `json:"type"`
	Version int64        `json:"version"`
	Members []rosterLine `json:"members"`
}

func newRosterResponse(r projections.Roster) rosterResponse {
	lines := make([]rosterLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = rosterLine{
			MemberID:  l.Member.ID,
			FirstName: l.Member.FirstName,
			LastName:  l.Member.LastName,
			Email:     l.Member.Email,
			Status:    string(l.Status),
			Notes:     l.Notes,
			Recorded:  l.Recorded,
		}
	}
	return rosterResponse{Date: r.Bucket.Date, Type: string(r.Bucket.Type), Version: r.Version, Members: lines}
}

type saveRosterRequest struct {
	Date            string       `json:"date"`
	Type            string       `json:"type"`
	Items           []rosterItem `json:"items"`
	ExpectedVersion *int64       `json:"expectedVersion,omitempty"`
}

type saveRosterResponse struct {
	Changed int   `json:"changed"`
	Version int64 `json:"version"`
}

// relocateRequest is the body of POST /api/attendance/relocate.
// Items absent or null copies the source bucket; [] deletes it.
type relocateRequest struct {
	FromDate        string        `json:"fromDate"`
	FromType        string        `json:"fromType"`
	ToDate          string        `json:"toDate"`
	ToType          string        `json:"toType"`
	Items           *[]rosterItem `json:"items"`
	ExpectedVersion *int64        `json:"expectedVersion,omitempty"`
}

type relocateResponse struct {
	MovedCount  int   `json:"movedCount"`
	Deleted     int   `json:"deleted"`
	FromVersion int64 `json:"fromVersion"`
	ToVersion   int64 `json:"toVersion"`
}

type historyEntry struct {
	ID        string    `json:"id"`
	MemberID  int64     `json:"memberId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email,omitempty"`
	Date      string    `json:"date"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type historyResponse struct {
	Entries []historyEntry     `json:"entries"`
	Page    *listutil.PageInfo `json:"page,omitempty"`
}

func newHistoryResponse(entries []attendance.HistoryEntry, page *listutil.PageInfo) historyResponse {
	out := make([]historyEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntry{
			ID:        e.ID,
			MemberID:  e.MemberID,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Email:     e.Email,
			Date:      e.Date,
			Type:      string(e.Type),
			Status:    string(e.Status),
			Notes:     e.Notes,
			UpdatedAt: e.UpdatedAt,
		}
	}
	return historyResponse{Entries: out, Page: page}
}
