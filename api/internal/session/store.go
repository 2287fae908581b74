package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTTL = 2 * time.Hour

// Store keeps sessions by id. Web sessions use random ids, Telegram chats
// use "tg:<chat>", the CLI uses "cli".
type Store struct {
	analyzer Analyzer
	log      *zap.Logger
	ttl      time.Duration

	sessions sync.Map // id -> *Session
}

func NewStore(analyzer Analyzer, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{analyzer: analyzer, ttl: ttl, log: log.Named("session")}
}

// NewID returns a fresh random session id.
func NewID() string { return uuid.NewString() }

func (st *Store) Get(id string) (*Session, bool) {
	v, ok := st.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (st *Store) GetOrCreate(id string) *Session {
	if s, ok := st.Get(id); ok {
		return s
	}
	v, loaded := st.sessions.LoadOrStore(id, New(id, st.analyzer, st.log))
	if !loaded {
		st.log.Debug("session created", zap.String("session", id))
	}
	return v.(*Session)
}

// Delete resets and forgets a session.
func (st *Store) Delete(ctx context.Context, id string) {
	v, ok := st.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	v.(*Session).Close(ctx)
}

func (st *Store) Len() int {
	n := 0
	st.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep drops sessions idle for longer than the TTL. Analyzing sessions
// are kept.
func (st *Store) Sweep(ctx context.Context, now time.Time) int {
	removed := 0
	st.sessions.Range(func(k, v any) bool {
		s := v.(*Session)
		if s.busy() || now.Sub(s.idleSince()) < st.ttl {
			return true
		}
		if st.sessions.CompareAndDelete(k, v) {
			s.Close(ctx)
			removed++
		}
		return true
	})
	if removed > 0 {
		st.log.Info("idle sessions swept", zap.Int("removed", removed))
	}
	return removed
}

// Janitor sweeps periodically until ctx is done.
func (st *Store) Janitor(ctx context.Context) {
	every := st.ttl / 4
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			st.Sweep(ctx, now)
		}
	}
}

// Close resets every session and waits for their runs.
func (st *Store) Close(ctx context.Context) {
	st.sessions.Range(func(k, v any) bool {
		st.sessions.Delete(k)
		v.(*Session).Close(ctx)
		return true
	})
}
