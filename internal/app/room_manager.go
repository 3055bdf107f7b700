package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomEntry is one live room. opMu serializes join/leave on the room and is
// held across media-service calls; RoomManager.mu guards every other field.
type roomEntry struct {
	opMu sync.Mutex

	room      domain.Room
	members   map[domain.UserID]*domain.Member
	order     []domain.UserID
	destroyed bool
}

func (e *roomEntry) snapshot() domain.Room {
	out := e.room
	out.Members = make([]domain.User, 0, len(e.order))
	for _, id := range e.order {
		out.Members = append(out.Members, e.members[id].User)
	}
	return out
}

func (e *roomEntry) remove(id domain.UserID) {
	delete(e.members, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}

type RoomManagerOption func(*RoomManager)

// WithOrphans records external rooms whose destroy call failed.
func WithOrphans(rec core.OrphanRecorder) RoomManagerOption {
	return func(m *RoomManager) { m.orphans = rec }
}

func WithClock(now func() time.Time) RoomManagerOption {
	return func(m *RoomManager) { m.now = now }
}

// RoomManager is the authoritative room registry. Rooms are keyed by name and
// backed one-to-one by a room in the media service.
type RoomManager struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomName]*roomEntry
	pending map[domain.RoomName]struct{}
	byUser  map[domain.UserID]domain.RoomName

	media   core.MediaService
	orphans core.OrphanRecorder
	events  core.RoomEvents
	now     func() time.Time
}

func NewRoomManager(media core.MediaService, opts ...RoomManagerOption) *RoomManager {
	m := &RoomManager{
		rooms:   make(map[domain.RoomName]*roomEntry),
		pending: make(map[domain.RoomName]struct{}),
		byUser:  make(map[domain.UserID]domain.RoomName),
		media:   media,
		events:  nopEvents{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetEvents installs the listener. Call before serving requests.
func (m *RoomManager) SetEvents(ev core.RoomEvents) {
	if ev == nil {
		ev = nopEvents{}
	}
	m.events = ev
}

// CreateRoom reserves name, creates the backing external room without holding
// the registry lock, then commits. A concurrent create of the same name sees
// the reservation and fails with ErrAlreadyExists.
func (m *RoomManager) CreateRoom(ctx context.Context, name domain.RoomName) (domain.Room, error) {
	name, err := domain.NewRoomName(string(name))
	if err != nil {
		return domain.Room{}, err
	}

	m.mu.Lock()
	_, exists := m.rooms[name]
	_, reserved := m.pending[name]
	if exists || reserved {
		m.mu.Unlock()
		return domain.Room{}, fmt.Errorf("create room %q: %w", name, domain.ErrAlreadyExists)
	}
	m.pending[name] = struct{}{}
	m.mu.Unlock()

	extID, err := m.media.CreateRoom(ctx, "Voice chat room: "+string(name))

	m.mu.Lock()
	delete(m.pending, name)
	if err != nil {
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "app.rooms").Str("room", string(name)).Msg("external create failed, room not registered")
		return domain.Room{}, fmt.Errorf("create room %q: %w", name, asExternal(err))
	}
	e := &roomEntry{
		room: domain.Room{
			ID:        domain.RoomID(extID),
			Name:      name,
			CreatedAt: m.now().UTC(),
		},
		members: make(map[domain.UserID]*domain.Member),
	}
	m.rooms[name] = e
	snap := e.snapshot()
	m.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("external_id", extID).Msg("room created")
	m.events.RoomCreated(snap)
	return snap, nil
}

// JoinRoom adds user to the room. Joining a room the user is already in is a
// no-op returning the current state.
func (m *RoomManager) JoinRoom(ctx context.Context, name domain.RoomName, user domain.User) (domain.Room, error) {
	e, err := m.entry(name)
	if err != nil {
		return domain.Room{}, err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()

	m.mu.Lock()
	if e.destroyed {
		m.mu.Unlock()
		return domain.Room{}, fmt.Errorf("join room %q: %w", name, domain.ErrNotFound)
	}
	if cur, ok := m.byUser[user.ID]; ok {
		if cur == name {
			snap := e.snapshot()
			m.mu.Unlock()
			return snap, nil
		}
		m.mu.Unlock()
		return domain.Room{}, fmt.Errorf("join room %q while in %q: %w", name, cur, domain.ErrAlreadyInRoom)
	}
	// Reserve the user so no other room can take them during the external call.
	m.byUser[user.ID] = name
	extID := string(e.room.ID)
	m.mu.Unlock()

	if err := m.media.JoinRoom(ctx, extID, string(user.ID)); err != nil {
		m.mu.Lock()
		delete(m.byUser, user.ID)
		m.mu.Unlock()
		log.Error().Err(err).Str("module", "app.rooms").Str("room", string(name)).Str("user", string(user.ID)).Msg("external join failed, rolled back")
		return domain.Room{}, fmt.Errorf("join room %q: %w", name, asExternal(err))
	}

	m.mu.Lock()
	e.members[user.ID] = domain.NewMember(user, m.now().UTC())
	e.order = append(e.order, user.ID)
	snap := e.snapshot()
	m.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("user", string(user.ID)).Int("members", len(snap.Members)).Msg("member added")
	m.events.UserJoined(snap, user)
	return snap, nil
}

// LeaveRoom removes the member. When the last member leaves the room is
// removed and torn down in the media service before LeaveRoom returns.
// Media-service failures here are logged, never returned.
func (m *RoomManager) LeaveRoom(ctx context.Context, name domain.RoomName, userID domain.UserID) error {
	e, err := m.entry(name)
	if err != nil {
		return err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()

	m.mu.RLock()
	if e.destroyed {
		m.mu.RUnlock()
		return fmt.Errorf("leave room %q: %w", name, domain.ErrNotFound)
	}
	member, ok := e.members[userID]
	extID := string(e.room.ID)
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("leave room %q: %w", name, domain.ErrUserNotInRoom)
	}

	if err := m.media.LeaveRoom(ctx, extID, string(userID)); err != nil {
		log.Warn().Err(err).Str("module", "app.rooms").Str("room", string(name)).Str("user", string(userID)).Msg("external leave failed, continuing")
	}

	m.mu.Lock()
	e.remove(userID)
	delete(m.byUser, userID)
	empty := len(e.members) == 0
	if empty {
		m.retire(name, e)
	}
	snap := e.snapshot()
	m.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("user", string(userID)).Int("members", len(snap.Members)).Msg("member removed")
	m.events.UserLeft(snap, member.User)

	if empty {
		m.teardown(ctx, name, extID)
	}
	return nil
}

// ReapIdle destroys rooms that were created before now-maxIdle and never got
// a member. It returns how many rooms it removed.
func (m *RoomManager) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().UTC().Add(-maxIdle)

	m.mu.RLock()
	var idle []domain.RoomName
	for name, e := range m.rooms {
		if len(e.members) == 0 && e.room.CreatedAt.Before(cutoff) {
			idle = append(idle, name)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, name := range idle {
		if m.reap(ctx, name, cutoff) {
			n++
		}
	}
	return n
}

// RunReaper calls ReapIdle until ctx is done.
func (m *RoomManager) RunReaper(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.ReapIdle(ctx, maxIdle); n > 0 {
				log.Info().Str("module", "app.rooms").Int("rooms", n).Msg("reaped idle rooms")
			}
		}
	}
}

func (m *RoomManager) reap(ctx context.Context, name domain.RoomName, cutoff time.Time) bool {
	e, err := m.entry(name)
	if err != nil {
		return false
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()

	m.mu.Lock()
	if e.destroyed || len(e.members) > 0 || !e.room.CreatedAt.Before(cutoff) {
		m.mu.Unlock()
		return false
	}
	m.retire(name, e)
	extID := string(e.room.ID)
	m.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("idle room reaped")
	m.teardown(ctx, name, extID)
	return true
}

// retire unregisters e but keeps name reserved until teardown finishes, so a
// create of the same name cannot interleave with the destroy. Caller holds m.mu.
func (m *RoomManager) retire(name domain.RoomName, e *roomEntry) {
	e.destroyed = true
	delete(m.rooms, name)
	m.pending[name] = struct{}{}
}

func (m *RoomManager) teardown(ctx context.Context, name domain.RoomName, extID string) {
	m.destroyExternal(ctx, name, extID)
	m.events.RoomDestroyed(name)

	m.mu.Lock()
	delete(m.pending, name)
	m.mu.Unlock()
}

func (m *RoomManager) destroyExternal(ctx context.Context, name domain.RoomName, extID string) {
	err := m.media.DestroyRoom(ctx, extID)
	if err == nil {
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("external_id", extID).Msg("room destroyed")
		return
	}
	log.Error().Err(err).Str("module", "app.rooms").Str("room", string(name)).Str("external_id", extID).Msg("external destroy failed, room orphaned")
	if m.orphans == nil {
		return
	}
	if err := m.orphans.Record(context.WithoutCancel(ctx), extID, err.Error()); err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Str("external_id", extID).Msg("record orphan")
	}
}

// FindRoomByUser returns the room the user is in or is currently joining.
func (m *RoomManager) FindRoomByUser(userID domain.UserID) (domain.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.byUser[userID]
	if !ok {
		return domain.Room{}, false
	}
	e, ok := m.rooms[name]
	if !ok {
		return domain.Room{}, false
	}
	return e.snapshot(), true
}

func (m *RoomManager) GetRoom(name domain.RoomName) (domain.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[name]
	if !ok {
		return domain.Room{}, false
	}
	return e.snapshot(), true
}

// Members returns the committed members of the room.
func (m *RoomManager) Members(name domain.RoomName) ([]domain.User, error) {
	room, ok := m.GetRoom(name)
	if !ok {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	return room.Members, nil
}

func (m *RoomManager) IsMember(name domain.RoomName, userID domain.UserID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rooms[name]
	if !ok {
		return false
	}
	_, ok = e.members[userID]
	return ok
}

// UpdateMember replaces the stored user meta, e.g. after a rename.
func (m *RoomManager) UpdateMember(user domain.User) (domain.RoomName, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.byUser[user.ID]
	if !ok {
		return "", false
	}
	e, ok := m.rooms[name]
	if !ok {
		return "", false
	}
	mem, ok := e.members[user.ID]
	if !ok {
		return "", false
	}
	mem.User = user
	return name, true
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for name, e := range m.rooms {
		out = append(out, core.RoomInfo{
			Name:        name,
			ID:          e.room.ID,
			CreatedAt:   e.room.CreatedAt,
			MemberCount: len(e.members),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *RoomManager) entry(name domain.RoomName) (*roomEntry, error) {
	m.mu.RLock()
	e, ok := m.rooms[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	return e, nil
}

func asExternal(err error) error {
	if errors.Is(err, domain.ErrExternalService) {
		return err
	}
	return errors.Join(domain.ErrExternalService, err)
}

type nopEvents struct{}

func (nopEvents) RoomCreated(domain.Room)             {}
func (nopEvents) UserJoined(domain.Room, domain.User) {}
func (nopEvents) UserLeft(domain.Room, domain.User)   {}
func (nopEvents) RoomDestroyed(domain.RoomName)       {}
