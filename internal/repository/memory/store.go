// Package memory provides in-process repositories with the same contracts as the
// postgres implementations. Tests use it to drive the use cases and the HTTP stack
// without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/repository"
)

// Store implements port.Repositories and port.Transactor. Transactions are serialised and
// a failed transaction restores the snapshot taken when it began.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	staff    map[string]domain.StaffSnapshot
	sessions map[string]domain.Session
	history  []domain.PasswordHistory

	adminCountCalls int
	rollbacks       int
}

type snapshot struct {
	staff    map[string]domain.StaffSnapshot
	sessions map[string]domain.Session
	history  []domain.PasswordHistory
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		staff:    make(map[string]domain.StaffSnapshot),
		sessions: make(map[string]domain.Session),
	}
}

func (s *Store) Staff() port.StaffRepository { return staffRepo{s} }

func (s *Store) Sessions() port.SessionRepository { return sessionRepo{s} }

func (s *Store) PasswordHistory() port.PasswordHistoryRepository { return historyRepo{s} }

// WithinTransaction runs fn against the store, rolling every change back when fn fails.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	saved := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.staff, s.sessions, s.history = saved.staff, saved.sessions, saved.history
		s.rollbacks++
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		staff:    make(map[string]domain.StaffSnapshot, len(s.staff)),
		sessions: make(map[string]domain.Session, len(s.sessions)),
		history:  append([]domain.PasswordHistory(nil), s.history...),
	}
	for k, v := range s.staff {
		snap.staff[k] = v
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v
	}
	return snap
}

// PutStaff stores the staff member, replacing any previous version.
func (s *Store) PutStaff(staff *domain.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[staff.ID()] = staff.Snapshot()
}

// LoadStaff returns the stored staff member or nil.
func (s *Store) LoadStaff(id string) *domain.Staff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadStaffLocked(id)
}

func (s *Store) loadStaffLocked(id string) *domain.Staff {
	snap, ok := s.staff[id]
	if !ok {
		return nil
	}
	return domain.ReconstructStaff(snap)
}

// StaffCount returns the number of stored accounts.
func (s *Store) StaffCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staff)
}

// PutSession stores the session, replacing any previous version.
func (s *Store) PutSession(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Session returns a stored session.
func (s *Store) Session(id string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// SessionIDs returns the sorted IDs of the staff member's sessions.
func (s *Store) SessionIDs(staffID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, session := range s.sessions {
		if session.StaffID == staffID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AdminCountCalls reports how often the admin rows were counted for update.
func (s *Store) AdminCountCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminCountCalls
}

// Rollbacks reports how many transactions were rolled back.
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

type staffRepo struct{ s *Store }

func (r staffRepo) Create(_ context.Context, staff *domain.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.staff {
		if existing.Email == staff.Email().String() {
			return domain.ErrDuplicateEmail
		}
	}
	r.s.staff[staff.ID()] = staff.Snapshot()
	return nil
}

func (r staffRepo) Update(_ context.Context, staff *domain.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.staff[staff.ID()]; !ok {
		return repository.ErrNotFound
	}
	r.s.staff[staff.ID()] = staff.Snapshot()
	return nil
}

func (r staffRepo) GetByID(_ context.Context, id string) (*domain.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if staff := r.s.loadStaffLocked(id); staff != nil {
		return staff, nil
	}
	return nil, repository.ErrNotFound
}

func (r staffRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Staff, error) {
	return r.GetByID(ctx, id)
}

func (r staffRepo) GetByEmail(_ context.Context, email string) (*domain.Staff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, snap := range r.s.staff {
		if snap.Email == email {
			return r.s.loadStaffLocked(id), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r staffRepo) EmailTakenByOther(_ context.Context, email string, excludeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, snap := range r.s.staff {
		if snap.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r staffRepo) CountAdminsForUpdate(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.adminCountCalls++
	count := 0
	for _, snap := range r.s.staff {
		if snap.IsAdmin {
			count++
		}
	}
	return count, nil
}

func (r staffRepo) List(_ context.Context, limit, offset int) ([]*domain.Staff, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snaps := make([]domain.StaffSnapshot, 0, len(r.s.staff))
	for _, snap := range r.s.staff {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})

	total := len(snaps)
	start := min(offset, total)
	end := min(start+limit, total)

	items := make([]*domain.Staff, 0, end-start)
	for _, snap := range snaps[start:end] {
		items = append(items, domain.ReconstructStaff(snap))
	}
	return items, total, nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, session domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.sessions[session.ID]; exists {
		return fmt.Errorf("duplicate session %s", session.ID)
	}
	r.s.sessions[session.ID] = session
	return nil
}

func (r sessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r sessionRepo) byStaffLocked(staffID, excludeID string) []domain.Session {
	var out []domain.Session
	for _, session := range r.s.sessions {
		if session.StaffID == staffID && session.ID != excludeID {
			out = append(out, session)
		}
	}
	return out
}

func (r sessionRepo) ListByStaff(_ context.Context, staffID string) ([]domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.byStaffLocked(staffID, "")
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r sessionRepo) ListOthersForUpdate(_ context.Context, staffID string, excludeID string) ([]domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.byStaffLocked(staffID, excludeID)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.Before(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r sessionRepo) TouchActivity(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[id]
	if !ok {
		return nil
	}
	session.LastActivity = at
	r.s.sessions[id] = session
	return nil
}

func (r sessionRepo) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.sessions[id]
	delete(r.s.sessions, id)
	return ok, nil
}

func (r sessionRepo) DeleteOwned(_ context.Context, staffID, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[id]
	if !ok || session.StaffID != staffID {
		return false, nil
	}
	delete(r.s.sessions, id)
	return true, nil
}

func (r sessionRepo) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := r.s.sessions[id]; ok {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r sessionRepo) DeleteAllExcept(_ context.Context, staffID, keepID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var removed []string
	for _, session := range r.byStaffLocked(staffID, keepID) {
		delete(r.s.sessions, session.ID)
		removed = append(removed, session.ID)
	}
	sort.Strings(removed)
	return removed, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) newestFirstLocked(staffID string) []domain.PasswordHistory {
	var out []domain.PasswordHistory
	for _, entry := range r.s.history {
		if entry.StaffID == staffID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r historyRepo) ListRecent(_ context.Context, staffID string, limit int) ([]domain.PasswordHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.newestFirstLocked(staffID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r historyRepo) Add(_ context.Context, entry domain.PasswordHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.history = append(r.s.history, entry)
	return nil
}

func (r historyRepo) Prune(_ context.Context, staffID string, keep int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ordered := r.newestFirstLocked(staffID)
	if len(ordered) <= keep {
		return 0, nil
	}

	drop := make(map[string]struct{}, len(ordered)-keep)
	for _, entry := range ordered[keep:] {
		drop[entry.ID] = struct{}{}
	}

	kept := make([]domain.PasswordHistory, 0, len(r.s.history)-len(drop))
	for _, entry := range r.s.history {
		if _, gone := drop[entry.ID]; !gone {
			kept = append(kept, entry)
		}
	}
	r.s.history = kept
	return int64(len(drop)), nil
}
