package session

import (
	"context"
	"encoding/base64"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minesweeper/internal/mines"
)

// Session is one board plus the lock that serializes every call into it.
type Session struct {
	ID        string
	StartedAt time.Time

	mu       sync.Mutex
	board    *mines.Board
	lastSeen atomic.Int64
	now      func() time.Time
}

// Do runs fn with exclusive access to the session's board.
func (s *Session) Do(fn func(b *mines.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen.Store(s.now().UnixNano())
	return fn(s.board)
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

type Store struct {
	log *logrus.Logger
	now func() time.Time

	mu       sync.Mutex
	rnd      *rand.Rand
	sessions map[string]*Session
}

func NewStore(log *logrus.Logger, rnd *rand.Rand) *Store {
	if rnd == nil {
		rnd = mines.NewRand()
	}
	return &Store{
		log:      log,
		now:      time.Now,
		rnd:      rnd,
		sessions: make(map[string]*Session),
	}
}

func newSessionID() string {
	u := [16]byte(uuid.New())
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// Create starts a new session on a fresh board. Every board gets its own
// generator so that placement never shares state across sessions.
func (st *Store) Create(params mines.Params) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	rnd := rand.New(rand.NewPCG(st.rnd.Uint64(), st.rnd.Uint64()))
	board, err := mines.New(params, rnd)
	if err != nil {
		return nil, err
	}

	now := st.now()
	s := &Session{
		ID:        newSessionID(),
		StartedAt: now.UTC(),
		board:     board,
		now:       st.now,
	}
	s.lastSeen.Store(now.UnixNano())
	st.sessions[s.ID] = s

	st.log.WithFields(logrus.Fields{
		"session": s.ID,
		"board":   params.String(),
	}).Debug("session created")

	return s, nil
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops sessions that have not been touched for longer than ttl and
// returns how many were dropped.
func (st *Store) Sweep(ttl time.Duration) int {
	deadline := st.now().Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(deadline) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is done.
func (st *Store) Run(ctx context.Context, ttl, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := st.Sweep(ttl); n > 0 {
				st.log.WithFields(logrus.Fields{
					"evicted": n,
					"active":  st.Len(),
				}).Info("idle sessions evicted")
			}
		}
	}
}
