package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/verinews/sessionkit/record"
)

// SessionStore is the single source of truth for one tab's authenticated
// identity. It is created through [Builder.Build], started once with
// [SessionStore.Start], and then drives all session mutations.
//
// Within a tab, state updates are strictly ordered by the order their
// initiating calls complete; the in-flight guard keeps auth mutators from
// racing each other. Across tabs, record change notifications arrive
// asynchronously with no ordering guarantee relative to this tab's own
// pending operation — if a login here races a logout elsewhere, the last
// assignment wins. That race is part of the contract, not a defect.
type SessionStore struct {
	cfg         Config
	gateway     Gateway
	records     record.Store
	ownsRecords bool
	log         zerolog.Logger
	audit       *auditDispatcher
	metrics     *Metrics

	mu      sync.RWMutex
	user    *User
	loading bool
	subs    map[int]func(Snapshot)
	nextSub int

	busy    atomic.Bool
	started atomic.Bool
	closed  atomic.Bool
}

// Start performs the restore-and-validate pass and begins consuming
// cross-tab change notifications until ctx ends. Restore failures degrade
// to a logged-out state; they are logged and audited, never fatal.
func (s *SessionStore) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session store already started")
	}

	s.setLoading(true)

	start := time.Now()
	user, err := s.gateway.CurrentUser(ctx)
	s.observeLatency(time.Since(start))
	switch {
	case err != nil:
		s.log.Warn().Err(err).Msg("session restore failed, starting logged out")
		s.metricInc(MetricRestoreFailure)
		s.emitAudit(ctx, auditEventRestoreFailure, false, "", err, nil)
		user = nil
	case user != nil:
		s.metricInc(MetricRestoreSuccess)
		s.emitAudit(ctx, auditEventRestoreSuccess, true, user.ID, nil, nil)
	}

	s.assign(user, false)

	changes, err := s.records.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch session record: %w", err)
	}
	go s.consume(ctx, changes)
	return nil
}

// Login authenticates and replaces the session wholesale on success.
// Concurrent mutators fail fast with [ErrOperationInFlight].
func (s *SessionStore) Login(ctx context.Context, creds Credentials) (*User, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	user, err := s.gateway.Login(ctx, creds)
	s.observeLatency(time.Since(start))
	if err != nil {
		s.countUnreachable(err)
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, "", err, func() map[string]string {
			return map[string]string{"email": creds.Email}
		})
		return nil, err
	}

	s.assign(user, false)
	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return user, nil
}

// Signup creates an account. A result with a user replaces the session; a
// pending-confirmation result leaves the session untouched. The backend's
// session payload is passed through to the caller unchanged.
func (s *SessionStore) Signup(ctx context.Context, data SignupData) (SignupResult, error) {
	release, err := s.acquire()
	if err != nil {
		return SignupResult{}, err
	}
	defer release()

	start := time.Now()
	result, err := s.gateway.Signup(ctx, data)
	s.observeLatency(time.Since(start))
	if err != nil {
		s.countUnreachable(err)
		s.metricInc(MetricSignupFailure)
		s.emitAudit(ctx, auditEventSignupFailure, false, "", err, func() map[string]string {
			return map[string]string{"email": data.Email}
		})
		return SignupResult{}, err
	}

	if result.User != nil {
		s.assign(result.User, false)
		s.metricInc(MetricSignupSuccess)
		s.emitAudit(ctx, auditEventSignupSuccess, true, result.User.ID, nil, nil)
	} else {
		s.metricInc(MetricSignupPending)
		s.emitAudit(ctx, auditEventSignupPending, true, "", nil, func() map[string]string {
			return map[string]string{"email": data.Email}
		})
	}
	return result, nil
}

// Logout ends the session. The backend call is best-effort; the in-memory
// session is cleared no matter what, and logging out while already logged
// out is a no-op, not an error.
func (s *SessionStore) Logout(ctx context.Context) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	previous := s.CurrentUser()
	err = s.gateway.Logout(ctx)
	s.assign(nil, false)

	userID := ""
	if previous != nil {
		userID = previous.ID
	}
	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, err == nil, userID, err, nil)
	return err
}

// Snapshot returns a point-in-time copy of the session state.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		User:          s.user,
		Loading:       s.loading,
		Authenticated: s.user != nil,
	}
}

// CurrentUser returns the in-memory user, nil when logged out.
func (s *SessionStore) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether a user is present.
func (s *SessionStore) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

// IsLoading reports whether the initial restore-and-validate pass is still
// running.
func (s *SessionStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Subscribe registers fn to run synchronously on every session change, with
// the snapshot current at that change. The returned cancel func removes the
// subscription.
func (s *SessionStore) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// MetricsSnapshot returns a deep copy of all metrics.
func (s *SessionStore) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under
// backpressure.
func (s *SessionStore) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// Close shuts down the audit dispatcher. A record store the builder created
// (WithRedisRecords, WithFileRecords) is closed too; an injected one stays
// open, its lifecycle belongs to whoever created it.
func (s *SessionStore) Close() {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
	if s.ownsRecords && s.records != nil {
		_ = s.records.Close()
	}
}

// consume applies externally-originated record changes until the channel
// closes. This is the only path by which another tab's action may mutate
// this store.
func (s *SessionStore) consume(ctx context.Context, changes <-chan record.Change) {
	for change := range changes {
		s.applyExternal(ctx, change)
	}
}

func (s *SessionStore) applyExternal(ctx context.Context, change record.Change) {
	if change.Removed || len(change.Payload) == 0 {
		s.assign(nil, s.IsLoading())
		s.metricInc(MetricExternalSync)
		s.emitAudit(ctx, auditEventExternalSync, true, "", nil, func() map[string]string {
			return map[string]string{"change": "removed"}
		})
		return
	}

	var user User
	if err := json.Unmarshal(change.Payload, &user); err != nil || user.ID == "" {
		s.log.Warn().Msg("cross-tab session payload unparseable, logging out this tab")
		s.assign(nil, s.IsLoading())
		s.metricInc(MetricExternalParseFailure)
		s.emitAudit(ctx, auditEventExternalParseFailure, false, "", errors.New("unparseable payload"), nil)
		return
	}

	s.assign(&user, s.IsLoading())
	s.metricInc(MetricExternalSync)
	s.emitAudit(ctx, auditEventExternalSync, true, user.ID, nil, func() map[string]string {
		return map[string]string{"change": "replaced"}
	})
}

// assign replaces the session state wholesale and notifies subscribers.
func (s *SessionStore) assign(user *User, loading bool) {
	s.mu.Lock()
	s.user = user
	s.loading = loading
	snapshot := Snapshot{User: user, Loading: loading, Authenticated: user != nil}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func (s *SessionStore) setLoading(loading bool) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	s.assign(user, loading)
}

func (s *SessionStore) acquire() (func(), error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrOperationInFlight
	}
	return func() { s.busy.Store(false) }, nil
}

func (s *SessionStore) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *SessionStore) observeLatency(d time.Duration) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Observe(MetricGatewayLatency, d)
}

func (s *SessionStore) countUnreachable(err error) {
	if errors.Is(err, ErrBackendUnreachable) {
		s.metricInc(MetricBackendUnreachable)
	}
}
