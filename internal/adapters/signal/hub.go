package signal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/voicebridge/internal/app"
	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// EventConnected greets a fresh connection with its identity.
const EventConnected = "Connected"

// Hub is the connection and group table behind core.Transport.
type Hub struct {
	mu     sync.RWMutex
	conns  map[core.SessionID]core.SignalConnection
	groups map[string]map[core.SessionID]struct{}
	policy app.Policy
	kick   func(core.SessionID) bool
}

type HubOption func(*Hub)

// WithKick is called for a connection the policy kicks, after its socket is
// closed. It should cancel the session so the pumps and the room leave run.
func WithKick(kick func(core.SessionID) bool) HubOption {
	return func(h *Hub) { h.kick = kick }
}

func NewHub(policy app.Policy, opts ...HubOption) *Hub {
	h := &Hub{
		conns:  make(map[core.SessionID]core.SignalConnection),
		groups: make(map[string]map[core.SessionID]struct{}),
		policy: policy,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Register(sid core.SessionID, c core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sid] = c
}

// Unregister drops the connection and every group membership it had.
func (h *Hub) Unregister(sid core.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, sid)
	for g, members := range h.groups {
		delete(members, sid)
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) AddToGroup(sid core.SessionID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[sid]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[core.SessionID]struct{})
		h.groups[group] = members
	}
	members[sid] = struct{}{}
}

func (h *Hub) RemoveFromGroup(sid core.SessionID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

func (h *Hub) SendToAll(event string, payload any) {
	f, err := encodeEvent(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", event).Msg("encode")
		return
	}
	h.mu.RLock()
	targets := make(map[core.SessionID]core.SignalConnection, len(h.conns))
	for sid, c := range h.conns {
		targets[sid] = c
	}
	h.mu.RUnlock()
	h.fanout(targets, event, f)
}

func (h *Hub) SendToGroup(group, event string, payload any) {
	f, err := encodeEvent(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("event", event).Msg("encode")
		return
	}
	h.mu.RLock()
	targets := make(map[core.SessionID]core.SignalConnection, len(h.groups[group]))
	for sid := range h.groups[group] {
		if c, ok := h.conns[sid]; ok {
			targets[sid] = c
		}
	}
	h.mu.RUnlock()
	h.fanout(targets, event, f)
}

func (h *Hub) SendToConnection(sid core.SessionID, event string, payload any) error {
	f, err := encodeEvent(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	h.mu.RLock()
	c, ok := h.conns[sid]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send %s to %s: %w", event, sid, errors.Join(domain.ErrTransport, ErrConnClosed))
	}
	return h.deliver(sid, c, event, f)
}

// fanout is best effort; a failing receiver never affects the others.
func (h *Hub) fanout(targets map[core.SessionID]core.SignalConnection, event string, f core.Frame) {
	for sid, c := range targets {
		if err := h.deliver(sid, c, event, f); err != nil {
			log.Debug().Err(err).Str("module", "signal.hub").Str("sid", string(sid)).Str("event", event).Msg("fanout miss")
		}
	}
}

func (h *Hub) deliver(sid core.SessionID, c core.SignalConnection, event string, f core.Frame) error {
	err := c.TrySend(f)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackpressure) && h.policy != nil {
		action := h.policy.OnBackPressure(sid, event)
		log.Warn().Str("module", "signal.hub").Str("sid", string(sid)).Str("event", event).Str("action", action.String()).Msg("send buffer full")
		if action == app.KickMember {
			c.Close()
			if h.kick != nil {
				h.kick(sid)
			}
		}
	}
	return fmt.Errorf("send %s to %s: %w", event, sid, errors.Join(domain.ErrTransport, err))
}
