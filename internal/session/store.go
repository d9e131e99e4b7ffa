package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhisek/smartrepeat/internal/stage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the user has no live session.
	ErrNotFound = errors.New("session not found")

	// ErrExists is returned by Create when the user already has a session.
	ErrExists = errors.New("session already exists")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session store closed")
)

// op runs on the owner goroutine with exclusive access to the sessions.
type op func(sessions map[string]*Session)

// Store owns every live session. All reads and writes are sent to a single
// goroutine as messages, so a session is only ever touched by that
// goroutine and is handed out as a copy.
type Store struct {
	ops     chan op
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
	now     func() time.Time
	logger  *zap.Logger
}

// NewStore starts the owner goroutine. Close must be called to stop it.
// A nil clock uses time.Now.
func NewStore(logger *zap.Logger, now func() time.Time) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	s := &Store{
		ops:     make(chan op),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     now,
		logger:  logger.Named("sessions"),
	}
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.stopped)
	sessions := make(map[string]*Session)
	for {
		select {
		case fn := <-s.ops:
			fn(sessions)
		case <-s.quit:
			for id, sess := range sessions {
				sess.Scratch.Release()
				delete(sessions, id)
			}
			return
		}
	}
}

// do hands fn to the owner goroutine and waits for it to finish. Once the
// goroutine has accepted fn it always runs it to completion.
func (s *Store) do(ctx context.Context, fn op) error {
	done := make(chan struct{})
	wrapped := func(m map[string]*Session) {
		defer close(done)
		fn(m)
	}
	select {
	case s.ops <- wrapped:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Get returns a copy of the user's session.
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	var out *Session
	if err := s.do(ctx, func(m map[string]*Session) {
		out = m[userID].Clone()
	}); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// Put stores a copy of sess, replacing any session the user had.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	c := sess.Clone()
	return s.do(ctx, func(m map[string]*Session) {
		if old, ok := m[c.UserID]; ok && old != nil {
			old.Scratch.Release()
		}
		m[c.UserID] = c
	})
}

// Create stores a copy of sess unless the user already has a session.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	c := sess.Clone()
	var exists bool
	if err := s.do(ctx, func(m map[string]*Session) {
		if _, exists = m[c.UserID]; !exists {
			m[c.UserID] = c
		}
	}); err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	return nil
}

// Update applies fn to a copy of the user's session and, if fn succeeds,
// makes the copy the live session. fn runs on the owner goroutine, so it
// must not call back into the store. If id is not the zero UUID the
// update only applies to that exact session.
func (s *Store) Update(ctx context.Context, userID string, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	var (
		out    *Session
		fnErr  error
		absent bool
	)
	if err := s.do(ctx, func(m map[string]*Session) {
		cur, ok := m[userID]
		if !ok || (id != uuid.Nil && cur.ID != id) {
			absent = true
			return
		}
		next := cur.Clone()
		if fnErr = fn(next); fnErr != nil {
			return
		}
		m[userID] = next
		out = next.Clone()
	}); err != nil {
		return nil, err
	}
	if absent {
		return nil, ErrNotFound
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return out, nil
}

// Delete releases the session's scratch and removes it. It reports whether
// a session was removed. If id is not the zero UUID only that exact
// session is removed.
func (s *Store) Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	var removed bool
	err := s.do(ctx, func(m map[string]*Session) {
		cur, ok := m[userID]
		if !ok || (id != uuid.Nil && cur.ID != id) {
			return
		}
		cur.Scratch.Release()
		delete(m, userID)
		removed = true
	})
	return removed, err
}

// Touch records activity on the user's session.
func (s *Store) Touch(ctx context.Context, userID string) error {
	var found bool
	if err := s.do(ctx, func(m map[string]*Session) {
		if cur, ok := m[userID]; ok {
			cur.LastActivity = s.now()
			found = true
		}
	}); err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func(m map[string]*Session) { n = len(m) })
	return n, err
}

// Expired describes a session removed by Sweep.
type Expired struct {
	UserID    string
	SessionID uuid.UUID
	Stage     stage.Stage
	Idle      time.Duration
}

// Sweep removes every session idle past its timeout under p. The key set
// is captured before anything is removed.
func (s *Store) Sweep(ctx context.Context, p Policy) ([]Expired, error) {
	var out []Expired
	err := s.do(ctx, func(m map[string]*Session) {
		now := s.now()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		for _, k := range keys {
			sess := m[k]
			if !p.Expired(sess, now) {
				continue
			}
			out = append(out, Expired{
				UserID:    sess.UserID,
				SessionID: sess.ID,
				Stage:     sess.State.Stage(),
				Idle:      sess.Idle(now),
			})
			sess.Scratch.Release()
			delete(m, k)
		}
	})
	return out, err
}

// Close stops the owner goroutine and releases every session. It is safe
// to call more than once.
func (s *Store) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.stopped
}
