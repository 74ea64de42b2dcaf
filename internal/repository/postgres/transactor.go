package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arklim/library-staff-auth/internal/core/port"
)

type txBeginner interface {
	pgExecutor
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Repositories groups the PostgreSQL repositories bound to one executor.
type Repositories struct {
	StaffRepo           *StaffRepository
	SessionRepo         *SessionRepository
	PasswordHistoryRepo *PasswordHistoryRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		StaffRepo:           NewStaffRepository(exec),
		SessionRepo:         NewSessionRepository(exec),
		PasswordHistoryRepo: NewPasswordHistoryRepository(exec),
	}
}

func (r *Repositories) withTx(tx pgx.Tx) *Repositories {
	return &Repositories{
		StaffRepo:           r.StaffRepo.WithTx(tx),
		SessionRepo:         r.SessionRepo.WithTx(tx),
		PasswordHistoryRepo: r.PasswordHistoryRepo.WithTx(tx),
	}
}

func (r *Repositories) Staff() port.StaffRepository { return r.StaffRepo }
func (r *Repositories) Sessions() port.SessionRepository { return r.SessionRepo }
func (r *Repositories) PasswordHistory() port.PasswordHistoryRepository { return r.PasswordHistoryRepo }

// Transactor runs callbacks inside READ COMMITTED transactions.
// Row locks taken with FOR UPDATE are released on commit or rollback.
type Transactor struct {
	db    txBeginner
	repos *Repositories
}

// NewTransactor binds the transactor to a pool or any executor that can begin transactions.
func NewTransactor(db txBeginner) *Transactor {
	return &Transactor{db: db, repos: NewRepositories(db)}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
	}()

	if err = fn(ctx, t.repos.withTx(tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repositories exposes the non-transactional repositories.
func (t *Transactor) Repositories() *Repositories {
	return t.repos
}

var (
	_ port.Transactor   = (*Transactor)(nil)
	_ port.Repositories = (*Repositories)(nil)
)
