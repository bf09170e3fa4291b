package attendance

import "fmt"

// Bucket is the set of records sharing one (date, type) pair.
type Bucket struct {
	Date string
	Type ServiceType
}

// NewBucket validates raw date and type input.
// PRE: none
// POST: Returns a bucket with a canonical date, or a validation error
func NewBucket(date, serviceType string) (Bucket, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Bucket{}, err
	}
	t, err := ParseServiceType(serviceType)
	if err != nil {
		return Bucket{}, err
	}
	return Bucket{Date: d, Type: t}, nil
}

// String renders the bucket as date/type.
func (b Bucket) String() string {
	return b.Date + "/" + string(b.Type)
}

// Entry is one caller-supplied roster line: the state a member should have in a bucket.
type Entry struct {
	MemberID int64
	Status   Status
	Notes    string
}

// NewEntry validates a roster line received at the boundary.
// Notes are stored exactly as given.
// PRE: none
// POST: Returns a typed Entry or the first validation error
func NewEntry(memberID int64, status, notes string) (Entry, error) {
	if memberID <= 0 {
		return Entry{}, ErrInvalidMember
	}
	st, err := ParseStatus(status)
	if err != nil {
		return Entry{}, fmt.Errorf("member %d: %w", memberID, err)
	}
	if !NotesFit(notes) {
		return Entry{}, fmt.Errorf("member %d: %w", memberID, ErrNotesTooLong)
	}
	return Entry{MemberID: memberID, Status: st, Notes: notes}, nil
}

// MemberIDs returns the distinct member ids referenced by entries, in first-seen order.
func MemberIDs(entries []Entry) []int64 {
	seen := make(map[int64]bool, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if seen[e.MemberID] {
			continue
		}
		seen[e.MemberID] = true
		ids = append(ids, e.MemberID)
	}
	return ids
}

// Relocation describes moving a whole bucket to another (date, type).
//
// Entries is the authoritative destination state. When CopySource is set the
// source bucket's current rows are used instead and Entries is ignored. An empty
// Entries with CopySource unset deletes the source and writes nothing.
type Relocation struct {
	From            Bucket
	To              Bucket
	Entries         []Entry
	CopySource      bool
	ExpectedVersion *int64 // optional guard on the source bucket
}

// RelocationOutcome reports what a relocation changed.
type RelocationOutcome struct {
	Deleted     int
	Moved       int
	FromVersion int64
	ToVersion   int64
}

// SaveOutcome reports what a roster save changed.
type SaveOutcome struct {
	Changed int
	Version int64
}
