package attendance

// HistoryFilter scopes a staff-facing history read. Zero values mean "no filter".
type HistoryFilter struct {
	From     string // inclusive YYYY-MM-DD
	To       string // inclusive YYYY-MM-DD
	Type     ServiceType
	MemberID int64
	Limit    int // 0 returns every matching row
	Offset   int
}

// HistoryEntry is a record joined with the identity of its member.
type HistoryEntry struct {
	Record
	FirstName string
	LastName  string
	Email     string
}

// MemberFilter scopes the records read for one member's analytics.
type MemberFilter struct {
	Window Window
	Type   ServiceType // empty means every type
}
