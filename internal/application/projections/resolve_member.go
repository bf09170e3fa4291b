package projections

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"chapel/internal/domain/account"
	"chapel/internal/domain/member"
)

// ResolveMemberStore defines the member lookups the resolver needs.
type ResolveMemberStore interface {
	GetByUserID(ctx context.Context, userID string) (member.Member, error)
	GetUnlinkedByEmail(ctx context.Context, email string) (member.Member, error)
}

// ResolveMemberDeps holds dependencies for ResolveMember.
type ResolveMemberDeps struct {
	MemberStore ResolveMemberStore
}

// QueryResolveMember maps a login identity to the member it represents.
// The strong link wins; otherwise an unlinked member with the same email is
// used. found is false when neither matches, which is not an error.
// PRE: none
// POST: Never returns a member linked to a different identity
func QueryResolveMember(ctx context.Context, identity account.Identity, deps ResolveMemberDeps) (m member.Member, found bool, err error) {
	if identity.ID != "" {
		m, err = deps.MemberStore.GetByUserID(ctx, identity.ID)
		if err == nil {
			return m, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return member.Member{}, false, err
		}
	}

	email := strings.TrimSpace(identity.Email)
	if email == "" {
		return member.Member{}, false, nil
	}
	m, err = deps.MemberStore.GetUnlinkedByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return member.Member{}, false, nil
	}
	if err != nil {
		return member.Member{}, false, err
	}
	if m.IsLinked() {
		// Stores must filter linked members; refuse rather than hijack.
		return member.Member{}, false, nil
	}
	return m, true, nil
}
