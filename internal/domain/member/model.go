package member

import (
	"errors"
	"strings"

	"chapel/internal/domain/attendance"
)

// Max length constants for roster fields.
const (
	MaxNameLength = 100
)

// Domain errors
var (
	ErrEmptyName    = errors.New("member first and last name cannot be empty")
	ErrNameTooLong  = errors.New("member name cannot exceed 100 characters")
	ErrInvalidEmail = errors.New("member email must be valid")
	ErrInvalidDate  = errors.New("birthday and baptism date must be YYYY-MM-DD")
)

// Member is a congregation roster entry. Rows are owned by the roster
// collaborator; the attendance engine only reads them.
type Member struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string // optional
	UserID       string // optional strong link to a login identity
	Congregation string
	Birthday     string // optional YYYY-MM-DD
	BaptismDate  string // optional YYYY-MM-DD
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: names are non-empty, email (when set) contains '@'
func (m *Member) Validate() error {
	if strings.TrimSpace(m.FirstName) == "" || strings.TrimSpace(m.LastName) == "" {
		return ErrEmptyName
	}
	if len(m.FirstName) > MaxNameLength || len(m.LastName) > MaxNameLength {
		return ErrNameTooLong
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		return ErrInvalidEmail
	}
	for _, d := range []string{m.Birthday, m.BaptismDate} {
		if d == "" {
			continue
		}
		if _, err := attendance.ParseDate(d); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

// IsLinked reports whether the member is strongly linked to a login identity.
func (m Member) IsLinked() bool {
	return m.UserID != ""
}

// NormalizeEmail lower-cases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
