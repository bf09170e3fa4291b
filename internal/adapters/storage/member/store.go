package member

import (
	"context"

	domain "chapel/internal/domain/member"
)

// Store reads the congregation roster. Members are owned by the roster
// collaborator; Save exists for seeding and tests.
type Store interface {
	GetByUserID(ctx context.Context, userID string) (domain.Member, error)
	GetUnlinkedByEmail(ctx context.Context, email string) (domain.Member, error)
	ListRoster(ctx context.Context) ([]domain.Member, error)
	MissingIDs(ctx context.Context, ids []int64) ([]int64, error)
	Save(ctx context.Context, value domain.Member) (domain.Member, error)
}
