package onboarding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kickzcaviar/seller-registration/metrics"
)

type Step int

const (
	AWAITING_COUNTRY Step = iota
	AWAITING_CONSENT
	AWAITING_CONTACT_INFO
	AWAITING_ADDRESS_INFO
	COMMITTING
	// CANCELLED and COMPLETED end the lifecycle but are never stored: Cancel and a
	// finished commit delete the session instead.
	CANCELLED
	COMPLETED
)

func (s Step) String() string {
	switch s {
	case AWAITING_COUNTRY:
		return "AWAITING_COUNTRY"
	case AWAITING_CONSENT:
		return "AWAITING_CONSENT"
	case AWAITING_CONTACT_INFO:
		return "AWAITING_CONTACT_INFO"
	case AWAITING_ADDRESS_INFO:
		return "AWAITING_ADDRESS_INFO"
	case COMMITTING:
		return "COMMITTING"
	case CANCELLED:
		return "CANCELLED"
	case COMPLETED:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

func (s Step) preConsent() bool {
	return s == AWAITING_COUNTRY || s == AWAITING_CONSENT
}

type Session struct {
	UserID      string
	Step        Step
	Country     *Country
	Contact     *ContactInfo
	ConsentedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const DefaultSessionIdleTTL = 30 * time.Minute

// SessionStore keeps in-progress registrations in memory. Sessions idle for
// longer than the TTL are treated as absent and removed by Sweep.
//
// Get/Put/Delete only protect the map itself. Callers serialize the
// read-validate-write of one user's session with Lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	locks    map[string]*userLock
	idleTTL  time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func NewSessionStore(idleTTL time.Duration, m *metrics.Metrics) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		locks:    make(map[string]*userLock),
		idleTTL:  idleTTL,
		now:      time.Now,
		metrics:  m,
	}
}

// Lock blocks until the caller holds the user's critical section or ctx is done.
// The returned unlock func is safe to call more than once.
func (s *SessionStore) Lock(ctx context.Context, userID string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{sem: make(chan struct{}, 1)}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.dropLockRef(userID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.dropLockRef(userID, l)
		})
	}, nil
}

func (s *SessionStore) dropLockRef(userID string, l *userLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, userID)
	}
}

func (s *SessionStore) Get(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if s.expired(sess, s.now()) {
		delete(s.sessions, userID)
		s.metrics.SessionEvicted()
		s.metrics.SetActiveSessions(len(s.sessions))
		return Session{}, false
	}
	return sess, true
}

// Put replaces whatever is stored for the user. It never merges.
func (s *SessionStore) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	s.sessions[sess.UserID] = sess
	s.metrics.SetActiveSessions(len(s.sessions))
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	s.metrics.SetActiveSessions(len(s.sessions))
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes idle sessions and returns how many were dropped. Sessions
// whose user currently holds or waits on the lock are left alone.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if _, busy := s.locks[id]; busy {
			continue
		}
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
			s.metrics.SessionEvicted()
		}
	}
	s.metrics.SetActiveSessions(len(s.sessions))
	return removed
}

func (s *SessionStore) RunJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("evicted idle registration sessions", slog.Int("count", n))
			}
		}
	}
}

func (s *SessionStore) expired(sess Session, now time.Time) bool {
	return now.Sub(sess.UpdatedAt) > s.idleTTL
}
