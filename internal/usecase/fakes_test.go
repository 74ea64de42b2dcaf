package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/repository/memory"
)

// prefixHasher stores "h:" + password so tests stay fast and deterministic.
type prefixHasher struct{}

func (prefixHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (prefixHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "h:") {
		return false, errors.New("unknown hash format")
	}
	return encoded == "h:"+password, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry domain.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) events() []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEvent, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Event)
	}
	return out
}

func (a *recordingAudit) last(event domain.AuditEvent) (domain.AuditEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		if a.entries[i].Event == event {
			return a.entries[i], true
		}
	}
	return domain.AuditEntry{}, false
}

type sequentialIDs struct {
	prefix string
	n      int
}

func (g *sequentialIDs) NewID() string {
	g.n++
	return fmt.Sprintf("%s%06d", g.prefix, g.n)
}

type sequentialTokens struct{ n int }

func (t *sequentialTokens) Issue() (string, string, error) {
	t.n++
	token := fmt.Sprintf("token-%d", t.n)
	return token, t.SessionID(token), nil
}

func (t *sequentialTokens) SessionID(token string) string { return "sid-" + token }

type fixedGenerator struct {
	values []string
	n      int
}

func (g *fixedGenerator) Generate(length int) (string, error) {
	if g.n < len(g.values) {
		v := g.values[g.n]
		g.n++
		return v, nil
	}
	g.n++
	return fmt.Sprintf("Temp#Pass%07d", g.n)[:length], nil
}

type memoryTerminations struct {
	reasons map[string]domain.SessionTerminationReason
	err     error
}

func newMemoryTerminations() *memoryTerminations {
	return &memoryTerminations{reasons: make(map[string]domain.SessionTerminationReason)}
}

func (t *memoryTerminations) MarkTerminated(_ context.Context, id string, reason domain.SessionTerminationReason, _ time.Duration) error {
	if t.err != nil {
		return t.err
	}
	t.reasons[id] = reason
	return nil
}

func (t *memoryTerminations) TerminationReason(_ context.Context, id string) (domain.SessionTerminationReason, bool, error) {
	if t.err != nil {
		return "", false, t.err
	}
	reason, ok := t.reasons[id]
	return reason, ok, nil
}

type acceptAllPolicy struct{ err error }

func (p acceptAllPolicy) Validate(string, ...string) error { return p.err }

type stubBreach struct {
	breached bool
	err      error
	calls    int
}

func (b *stubBreach) IsBreached(_ context.Context, _ string) (bool, error) {
	b.calls++
	return b.breached, b.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fixture wires every service against one in-memory store.
type fixture struct {
	store        *memory.Store
	audit        *recordingAudit
	clock        *clock
	terminations *memoryTerminations
	tokens       *sequentialTokens
	generator    *fixedGenerator
	breach       *stubBreach

	sessions *SessionService
	history  *PasswordHistoryService
	login    *LoginService
	accounts *StaffAccountService
	change   *PasswordChangeService
}

func newFixture() *fixture {
	f := &fixture{
		store:        memory.NewStore(),
		audit:        &recordingAudit{},
		clock:        &clock{t: time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)},
		terminations: newMemoryTerminations(),
		tokens:       &sequentialTokens{},
		generator:    &fixedGenerator{},
		breach:       &stubBreach{},
	}

	hasher := prefixHasher{}
	f.sessions = NewSessionService(f.store.Sessions(), f.store, f.audit, SessionPolicy{}, nil).
		WithTerminationStore(f.terminations)
	f.sessions.WithClock(f.clock.now)

	f.history = NewPasswordHistoryService(f.store.PasswordHistory(), hasher, &sequentialIDs{prefix: "ph"}, 0, nil)
	f.history.WithClock(f.clock.now)

	f.login = NewLoginService(f.store, f.store.Staff(), hasher, f.tokens, f.sessions, f.audit, nil)
	f.login.WithClock(f.clock.now)

	f.accounts = NewStaffAccountService(f.store, f.store.Staff(), hasher, f.generator, &sequentialIDs{prefix: "st"}, f.history, f.sessions, f.audit, 16, nil)
	f.accounts.WithClock(f.clock.now)

	f.change = NewPasswordChangeService(f.store, f.store.Staff(), hasher, acceptAllPolicy{}, f.history, f.sessions, f.audit, PasswordChangeOptions{
		Breach:      f.breach,
		Degradation: domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient),
	}, nil)
	f.change.WithClock(f.clock.now)

	return f
}

// seedStaff stores an account whose password is the supplied plain text.
func (f *fixture) seedStaff(id, email, password string, isAdmin bool) *domain.Staff {
	e, err := domain.NewEmail(email)
	if err != nil {
		panic(err)
	}
	n, err := domain.NewStaffName("Staff " + id)
	if err != nil {
		panic(err)
	}
	p, err := domain.NewPasswordFromPlainText(password, prefixHasher{})
	if err != nil {
		panic(err)
	}
	s := domain.NewStaff(id, e, n, p, isAdmin, f.clock.now())
	f.store.PutStaff(s)
	return s
}

// seedSession stores a session whose last activity is ago before the fixture clock.
func (f *fixture) seedSession(id, staffID string, ago time.Duration) domain.Session {
	at := f.clock.now().Add(-ago)
	s := domain.Session{ID: id, StaffID: staffID, LastActivity: at, CreatedAt: at}
	f.store.PutSession(s)
	return s
}
