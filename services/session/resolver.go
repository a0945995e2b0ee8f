// Package session reconciles the two sources of identity a browser client can
// carry (an admin auth session and a persisted student record) into a single
// role.
package session

import (
	"bimbel_go/models"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Role string

const (
	RoleLoading   Role = "loading"
	RoleAdmin     Role = "admin"
	RoleStudent   Role = "student"
	RoleAnonymous Role = "anonymous"
)

// Client store keys.
const (
	StudentKey    = "student_session"
	LanguageKey   = "app_language"
	AdminTokenKey = "admin_session"
)

// maxRefreshAttempts caps Refresh retries while notifications keep arriving.
const maxRefreshAttempts = 3

// RecordTTL bounds how long an untouched client store entry survives.
const RecordTTL = 30 * 24 * time.Hour

var ErrNoStudent = errors.New("session: student not found")

// AdminSession is what the auth provider reports for a signed-in admin.
type AdminSession struct {
	AdminID   uint      `json:"admin_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-"`
}

// State is a resolved role. Admin and Student are never both set.
type State struct {
	Role    Role            `json:"role"`
	Admin   *AdminSession   `json:"admin,omitempty"`
	Student *models.Student `json:"student,omitempty"`
}

func (s State) Resolved() bool { return s.Role != RoleLoading && s.Role != "" }

func (s State) IsAdmin() bool { return s.Role == RoleAdmin }

func (s State) IsStudent() bool { return s.Role == RoleStudent }

// AuthProvider is the admin authentication backend for one client.
type AuthProvider interface {
	CurrentSession(ctx context.Context) (*AdminSession, error)
	SignOut(ctx context.Context) error
	// Subscribe registers fn for session changes. fn may be called
	// synchronously from SignOut.
	Subscribe(fn func(*AdminSession)) (unsubscribe func())
}

// Store is a per-client key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StudentSource loads the canonical student row.
type StudentSource interface {
	FetchStudent(ctx context.Context, id uint) (*models.Student, error)
}

// Resolver is the per-client role state machine. It is safe for concurrent use.
type Resolver struct {
	provider AuthProvider
	store    Store
	students StudentSource
	log      *logrus.Entry

	// opMu serializes Init/Refresh/LoginAsStudent/Logout. Provider
	// notifications only take mu, so a notification fired from inside
	// SignOut never waits on opMu.
	opMu sync.Mutex

	// notifyMu orders provider notifications against Refresh commits.
	// gen counts notifications; a Refresh that saw an older gen retries.
	notifyMu sync.Mutex
	gen      uint64

	mu          sync.Mutex
	state       State
	lastSeen    time.Time
	unsubscribe func()
	listeners   map[int]func(State)
	nextID      int
}

func NewResolver(provider AuthProvider, store Store, students StudentSource) *Resolver {
	return &Resolver{
		provider:  provider,
		store:     store,
		students:  students,
		log:       logrus.WithField("component", "session"),
		state:     State{Role: RoleLoading},
		lastSeen:  time.Now(),
		listeners: make(map[int]func(State)),
	}
}

// Init attaches to the provider and computes the initial state.
func (r *Resolver) Init(ctx context.Context) error {
	r.attach()
	return r.Refresh(ctx)
}

func (r *Resolver) attach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil || r.provider == nil {
		return
	}
	r.unsubscribe = r.provider.Subscribe(r.handleNotification)
}

// Refresh recomputes the state from the provider and the store. It only
// fails when ctx is done, leaving the previous state in place. A provider
// notification arriving mid-refresh wins over what the refresh read.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.touch()
	for attempt := 1; ; attempt++ {
		done, err := r.refreshOnce(ctx)
		if err != nil || done || attempt == maxRefreshAttempts {
			return err
		}
	}
}

func (r *Resolver) refreshOnce(ctx context.Context) (bool, error) {
	start := r.generation()

	var sess *AdminSession
	if r.provider != nil {
		s, err := r.provider.CurrentSession(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			r.log.WithError(err).Warn("auth provider session lookup failed")
		}
		sess = s
	}
	if sess != nil {
		return r.commit(start, func() {
			r.eraseStudent(ctx)
			r.setState(State{Role: RoleAdmin, Admin: sess})
		}), nil
	}

	rec, ok := r.loadRecord(ctx)
	if !ok {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return r.commit(start, func() {
			r.setState(State{Role: RoleAnonymous})
		}), nil
	}

	fresh, err := r.students.FetchStudent(ctx, rec.ID)
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || fresh == nil || !fresh.IsActive() {
		return r.commit(start, func() {
			r.log.WithFields(logrus.Fields{"student_id": rec.ID, "error": err}).Info("discarding student session")
			r.eraseStudent(ctx)
			r.setState(State{Role: RoleAnonymous})
		}), nil
	}
	return r.commit(start, func() {
		if err := r.persist(ctx, fresh); err != nil {
			r.log.WithError(err).Warn("failed to persist refreshed student record")
		}
		r.setState(State{Role: RoleStudent, Student: fresh})
	}), nil
}

func (r *Resolver) generation() uint64 {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	return r.gen
}

// commit runs apply unless a notification arrived since start.
func (r *Resolver) commit(start uint64, apply func()) bool {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if r.gen != start {
		return false
	}
	apply()
	return true
}

// LoginAsStudent persists record, becomes Student and then ends any admin
// session the provider still holds.
func (r *Resolver) LoginAsStudent(ctx context.Context, record *models.Student) error {
	if record == nil {
		return ErrNoStudent
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.touch()
	if err := r.persist(ctx, record); err != nil {
		return err
	}
	r.setState(State{Role: RoleStudent, Student: cloneStudent(record)})

	if r.provider != nil {
		if err := r.provider.SignOut(ctx); err != nil {
			r.log.WithError(err).Warn("failed to end admin session on student login")
		}
	}
	return nil
}

// Logout always ends in Anonymous with no persisted record.
func (r *Resolver) Logout(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.touch()
	wasAdmin := r.State().IsAdmin()

	r.eraseStudent(ctx)
	r.setState(State{Role: RoleAnonymous})

	if wasAdmin && r.provider != nil {
		if err := r.provider.SignOut(ctx); err != nil {
			return err
		}
	}
	return nil
}

// State returns a copy of the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyState(r.state)
}

// Subscribe registers fn for state changes.
func (r *Resolver) Subscribe(fn func(State)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// LastSeen reports the last time the client used this resolver.
func (r *Resolver) LastSeen() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// Close detaches from the provider and drops listeners.
func (r *Resolver) Close() {
	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.listeners = make(map[int]func(State))
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (r *Resolver) handleNotification(sess *AdminSession) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.gen++

	ctx := context.Background()
	if sess != nil {
		r.eraseStudent(ctx)
		r.setState(State{Role: RoleAdmin, Admin: sess})
		return
	}
	if rec, ok := r.loadRecord(ctx); ok {
		r.setState(State{Role: RoleStudent, Student: rec})
		return
	}
	r.setState(State{Role: RoleAnonymous})
}

// loadRecord reads the persisted student; corrupt data is erased.
func (r *Resolver) loadRecord(ctx context.Context) (*models.Student, bool) {
	raw, ok, err := r.store.Get(ctx, StudentKey)
	if err != nil {
		r.log.WithError(err).Warn("client store read failed")
		return nil, false
	}
	if !ok || raw == "" {
		return nil, false
	}
	var rec models.Student
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ID == 0 {
		r.log.Warn("discarding unreadable student session record")
		r.eraseStudent(ctx)
		return nil, false
	}
	return &rec, true
}

func (r *Resolver) persist(ctx context.Context, s *models.Student) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, StudentKey, string(b), RecordTTL)
}

func (r *Resolver) eraseStudent(ctx context.Context) {
	if err := r.store.Delete(ctx, StudentKey); err != nil {
		r.log.WithError(err).Warn("client store delete failed")
	}
}

func (r *Resolver) touch() {
	r.mu.Lock()
	r.lastSeen = time.Now()
	r.mu.Unlock()
}

func (r *Resolver) setState(next State) {
	r.mu.Lock()
	changed := !sameState(r.state, next)
	r.state = next
	var fns []func(State)
	if changed {
		fns = make([]func(State), 0, len(r.listeners))
		for _, fn := range r.listeners {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(copyState(next))
	}
}

func sameState(a, b State) bool {
	if a.Role != b.Role {
		return false
	}
	switch a.Role {
	case RoleAdmin:
		return a.Admin != nil && b.Admin != nil && a.Admin.AdminID == b.Admin.AdminID
	case RoleStudent:
		return a.Student != nil && b.Student != nil &&
			a.Student.ID == b.Student.ID && a.Student.UpdatedAt.Equal(b.Student.UpdatedAt)
	}
	return true
}

func copyState(s State) State {
	out := State{Role: s.Role}
	if s.Admin != nil {
		a := *s.Admin
		out.Admin = &a
	}
	out.Student = cloneStudent(s.Student)
	return out
}

func cloneStudent(s *models.Student) *models.Student {
	if s == nil {
		return nil
	}
	c := *s
	if s.Email != nil {
		e := *s.Email
		c.Email = &e
	}
	if s.DateOfBirth != nil {
		d := *s.DateOfBirth
		c.DateOfBirth = &d
	}
	return &c
}
