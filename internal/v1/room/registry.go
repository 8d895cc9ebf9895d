package room

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nbittich/hearts/internal/v1/game"
	"github.com/nbittich/hearts/internal/v1/metrics"
	"github.com/nbittich/hearts/internal/v1/users"
)

// ErrTooManyRooms is returned by Create once MaxRooms rooms are live.
var ErrTooManyRooms = errors.New("too many rooms")

// Registry owns every live room. Rooms are never evicted implicitly; a
// finished room stays queryable until the registry shuts down.
type Registry struct {
	factory   game.Factory
	directory *users.Directory

	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

func NewRegistry(factory game.Factory, directory *users.Directory) *Registry {
	return &Registry{
		factory:   factory,
		directory: directory,
		rooms:     make(map[uuid.UUID]*Room),
	}
}

// Create spawns a fresh Waiting room, bounded by MaxRooms.
func (g *Registry) Create() (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.rooms) >= MaxRooms {
		return nil, ErrTooManyRooms
	}
	r := New(g.factory, g.directory)
	g.rooms[r.ID] = r
	metrics.ActiveRooms.Set(float64(len(g.rooms)))
	return r, nil
}

// Get returns the room with the given id, if live.
func (g *Registry) Get(id uuid.UUID) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// RoomInfo is the listing entry exposed over HTTP.
type RoomInfo struct {
	ID      uuid.UUID    `json:"id"`
	Phase   string       `json:"phase"`
	Players []users.User `json:"players"`
}

// List snapshots every live room, ordered by id for stable output.
func (g *Registry) List() []RoomInfo {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, RoomInfo{ID: r.ID, Phase: r.Phase().String(), Players: r.Players()})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID.String() < infos[j].ID.String()
	})
	return infos
}

// Shutdown closes every room and empties the registry. Each room gets the
// remainder of ctx to drain.
func (g *Registry) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.rooms = make(map[uuid.UUID]*Room)
	metrics.ActiveRooms.Set(0)
	g.mu.Unlock()

	var firstErr error
	for _, r := range rooms {
		if err := r.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
