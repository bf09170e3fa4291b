package projections

import (
	"context"

	"chapel/internal/domain/attendance"
	"chapel/internal/domain/member"
)

// GetRosterQuery carries query parameters.
type GetRosterQuery struct {
	Date string
	Type string
}

// RosterLine is one member's state in a bucket.
type RosterLine struct {
	Member   member.Member
	Status   attendance.Status
	Notes    string
	Recorded bool // false when the status is the absent default
}

// Roster is the full roster for one bucket.
type Roster struct {
	Bucket  attendance.Bucket
	Version int64
	Lines   []RosterLine
}

// RosterMemberStore lists the whole roster.
type RosterMemberStore interface {
	ListRoster(ctx context.Context) ([]member.Member, error)
}

// RosterAttendanceStore reads one bucket.
type RosterAttendanceStore interface {
	ListBucket(ctx context.Context, bucket attendance.Bucket) ([]attendance.Record, error)
	BucketVersion(ctx context.Context, bucket attendance.Bucket) (int64, error)
}

// GetRosterDeps holds dependencies for GetRoster.
type GetRosterDeps struct {
	MemberStore     RosterMemberStore
	AttendanceStore RosterAttendanceStore
}

// QueryGetRoster returns every member with their status in the bucket,
// defaulting to absent with empty notes when nothing is recorded.
// PRE: date is YYYY-MM-DD and type is a known service type
// POST: Lines follow roster order (last name, first name); no writes
func QueryGetRoster(ctx context.Context, query GetRosterQuery, deps GetRosterDeps) (Roster, error) {
	bucket, err := attendance.NewBucket(query.Date, query.Type)
	if err != nil {
		return Roster{}, err
	}

	members, err := deps.MemberStore.ListRoster(ctx)
	if err != nil {
		return Roster{}, err
	}
	records, err := deps.AttendanceStore.ListBucket(ctx, bucket)
	if err != nil {
		return Roster{}, err
	}
	version, err := deps.AttendanceStore.BucketVersion(ctx, bucket)
	if err != nil {
		return Roster{}, err
	}

	byMember := make(map[int64]attendance.Record, len(records))
	for _, r := range records {
		byMember[r.MemberID] = r
	}

	lines := make([]RosterLine, 0, len(members))
	for _, m := range members {
		line := RosterLine{Member: m, Status: attendance.StatusAbsent}
		if r, ok := byMember[m.ID]; ok {
			line.Status = r.Status
			line.Notes = r.Notes
			line.Recorded = true
		}
		lines = append(lines, line)
	}
	return Roster{Bucket: bucket, Version: version, Lines: lines}, nil
}
