package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the day-granular format used for every attendance date.
const DateLayout = "2006-01-02"

// MaxNotesLength bounds the free-text notes on a single record, in characters.
const MaxNotesLength = 2000

// ServiceType distinguishes recordable services held on the same calendar day.
type ServiceType string

// Service types
const (
	TypeWorship    ServiceType = "worship"
	TypeBibleStudy ServiceType = "bible_study"
	TypeEvent      ServiceType = "event"
)

// ServiceTypes lists every valid service type in display order.
var ServiceTypes = []ServiceType{TypeWorship, TypeBibleStudy, TypeEvent}

// Status is the recorded presence of a member at one service.
type Status string

// Status values
const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Domain errors
var (
	ErrInvalidDate     = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidType     = errors.New("type must be one of: worship, bible_study, event")
	ErrInvalidStatus   = errors.New("status must be 'present' or 'absent'")
	ErrInvalidMember   = errors.New("member id must be a positive integer")
	ErrNotesTooLong    = fmt.Errorf("notes cannot exceed %d characters", MaxNotesLength)
	ErrUnknownMember   = errors.New("member does not exist")
	ErrVersionConflict = errors.New("attendance bucket was modified by another operator")
)

// Record is one row of recorded attendance.
// (MemberID, Date, Type) is unique across all records.
type Record struct {
	ID        string
	MemberID  int64
	Date      string // YYYY-MM-DD
	Type      ServiceType
	Status    Status
	Notes     string
	UpdatedAt time.Time
}

// Validate checks if the Record has valid data.
// PRE: Record struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (r *Record) Validate() error {
	if r.MemberID <= 0 {
		return ErrInvalidMember
	}
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if !NotesFit(r.Notes) {
		return ErrNotesTooLong
	}
	return nil
}

// NotesFit reports whether notes is within MaxNotesLength characters.
func NotesFit(notes string) bool {
	return utf8.RuneCountInString(notes) <= MaxNotesLength
}

// IsPresent reports whether the member was recorded as present.
func (r Record) IsPresent() bool {
	return r.Status == StatusPresent
}

// Valid reports whether t is one of the known service types.
func (t ServiceType) Valid() bool {
	for _, v := range ServiceTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Valid reports whether s is present or absent.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// ParseServiceType converts user input into a ServiceType.
// PRE: none
// POST: Returns ErrInvalidType for anything outside the enum
func ParseServiceType(s string) (ServiceType, error) {
	t := ServiceType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// ParseOptionalServiceType treats an empty string as "all types".
func ParseOptionalServiceType(s string) (ServiceType, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return ParseServiceType(s)
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// ParseDate validates a YYYY-MM-DD string and returns its canonical form.
// PRE: none
// POST: Returns ErrInvalidDate if s is not a real calendar day
func ParseDate(s string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return d.Format(DateLayout), nil
}

// FormatDate renders t as a calendar date in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
