package member_test

import (
	"testing"

	"chapel/internal/domain/member"
)

// TestMemberValidation tests validation of Member.
func TestMemberValidation(t *testing.T) {
	tests := []struct {
		name    string
		member  member.Member
		wantErr bool
	}{
		{
			name:    "valid member",
			member:  member.Member{FirstName: "Ruth", LastName: "Moabite", Email: "ruth@example.com", Congregation: "North"},
			wantErr: false,
		},
		{
			name:    "valid member without email",
			member:  member.Member{FirstName: "Boaz", LastName: "Bethlehem"},
			wantErr: false,
		},
		{
			name:    "empty last name",
			member:  member.Member{FirstName: "Naomi"},
			wantErr: true,
		},
		{
			name:    "invalid email",
			member:  member.Member{FirstName: "Naomi", LastName: "Elimelech", Email: "naomi"},
			wantErr: true,
		},
		{
			name:    "invalid birthday",
			member:  member.Member{FirstName: "Naomi", LastName: "Elimelech", Birthday: "1990-13-01"},
			wantErr: true,
		},
		{
			name:    "valid baptism date",
			member:  member.Member{FirstName: "Naomi", LastName: "Elimelech", BaptismDate: "2001-06-17"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.member.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Member.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestMemberIsLinked tests the strong-link helper.
func TestMemberIsLinked(t *testing.T) {
	if (member.Member{}).IsLinked() {
		t.Error("member without user id should not be linked")
	}
	if !(member.Member{UserID: "acct-1"}).IsLinked() {
		t.Error("member with user id should be linked")
	}
}

// TestNormalizeEmail tests email comparison normalisation.
func TestNormalizeEmail(t *testing.T) {
	if got := member.NormalizeEmail("  Ruth@Example.COM "); got != "ruth@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
