package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocalMedia stands in for the media service when none is configured. Peers
// then talk directly and rooms exist only in this process.
type LocalMedia struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

func NewLocalMedia() *LocalMedia {
	return &LocalMedia{rooms: make(map[string]map[string]struct{})}
}

func (l *LocalMedia) CreateRoom(_ context.Context, description string) (string, error) {
	id := uuid.NewString()
	l.mu.Lock()
	l.rooms[id] = make(map[string]struct{})
	l.mu.Unlock()
	log.Debug().Str("module", "app.media").Str("external_id", id).Str("description", description).Msg("local room created")
	return id, nil
}

func (l *LocalMedia) JoinRoom(_ context.Context, roomID, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[roomID]
	if !ok {
		return fmt.Errorf("local room %s: %w", roomID, domain.ErrNotFound)
	}
	r[userID] = struct{}{}
	return nil
}

func (l *LocalMedia) LeaveRoom(_ context.Context, roomID, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rooms[roomID]; ok {
		delete(r, userID)
	}
	return nil
}

func (l *LocalMedia) DestroyRoom(_ context.Context, roomID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms, roomID)
	return nil
}

func (l *LocalMedia) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
