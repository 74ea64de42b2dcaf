package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

func TestPasswordHistoryRepository_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "staff_id", "password_hash", "created_at"}).
		AddRow("h2", "staff-1", "hash-2", now).
		AddRow("h1", "staff-1", "hash-1", now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, staff_id, password_hash, created_at FROM library\.password_histories WHERE staff_id = \$1 ORDER BY created_at DESC, id DESC LIMIT 5`).
		WithArgs("staff-1").
		WillReturnRows(rows)

	history, err := NewPasswordHistoryRepository(mock).ListRecent(context.Background(), "staff-1", domain.PasswordHistoryDepth)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(history) != 2 || history[0].PasswordHash != "hash-2" {
		t.Fatalf("unexpected history %+v", history)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordHistoryRepository_AddAndPrune(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPasswordHistoryRepository(mock)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO library\.password_histories`).
		WithArgs("h6", "staff-1", "hash-6", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM library\.password_histories`).
		WithArgs("staff-1", 5).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Add(context.Background(), domain.NewPasswordHistory("h6", "staff-1", "hash-6", now)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	removed, err := repo.Prune(context.Background(), "staff-1", domain.PasswordHistoryDepth)
	if err != nil || removed != 1 {
		t.Fatalf("expected one pruned row, got %d %v", removed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
