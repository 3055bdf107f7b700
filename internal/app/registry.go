package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	User        domain.User
	Token       string
	ConnectedAt time.Time
	Cancel      context.CancelFunc
}

// Registry tracks live connections and the user bound to each. Room
// membership lives in RoomManager; Registry never duplicates it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Bind registers a new connection. An invalid display name falls back to the
// default derived from sid.
func (r *Registry) Bind(sid core.SessionID, token, displayName string, cancel context.CancelFunc) domain.User {
	u, err := domain.NewUser(domain.UserID(sid), displayName)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("display name rejected, using default")
		u, _ = domain.NewUser(domain.UserID(sid), "")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		User:        *u,
		Token:       token,
		ConnectedAt: time.Now().UTC(),
		Cancel:      cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", u.Username).Msg("bound session")
	return *u
}

func (r *Registry) User(sid core.SessionID) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.User, true
	}
	return domain.User{}, false
}

func (r *Registry) UpdateUsername(sid core.SessionID, name string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.User{}, fmt.Errorf("session %s: %w", sid, domain.ErrNotFound)
	}
	u := e.User
	if err := u.SetUsername(name); err != nil {
		return domain.User{}, err
	}
	e.User = u
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", name).Msg("updated username")
	return u, nil
}

func (r *Registry) Unbind(sid core.SessionID) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.User{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("ct", e.Token).Dur("connected", time.Since(e.ConnectedAt)).Msg("unbind session")
	return e.User, true
}

// Cancel stops the connection's context, which makes the transport drop it.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
