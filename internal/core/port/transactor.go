package port

import "context"

// Repositories groups the stores that participate in one transaction.
type Repositories interface {
	Staff() StaffRepository
	Sessions() SessionRepository
	PasswordHistory() PasswordHistoryRepository
}

// Transactor runs fn inside a single database transaction. A nil return commits.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
