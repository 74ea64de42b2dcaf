package port

import (
	"context"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// StaffRepository persists Staff aggregates.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.Staff) error
	Update(ctx context.Context, staff *domain.Staff) error
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	// GetByIDForUpdate loads the row under an exclusive lock held until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Staff, error)
	GetByEmail(ctx context.Context, email string) (*domain.Staff, error)
	EmailTakenByOther(ctx context.Context, email string, excludeID string) (bool, error)
	// CountAdminsForUpdate counts admins while locking every admin row.
	CountAdminsForUpdate(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Staff, int, error)
}
