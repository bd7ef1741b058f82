package realtime

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gdugdh24/yuno-backend/internal/geo"
)

const shardCount = 32

// ConnectionRecord is the registry's view of one live connection.
// Records handed out by the registry are copies.
type ConnectionRecord struct {
	ConnectionID string
	UserID       *int
	Location     *geo.Point
	Profile      PublicProfile
	Rooms        []string
	// Status is empty until the connection reports one.
	Status          string
	StatusUpdatedAt *time.Time
	ConnectedAt     time.Time
	UpdatedAt       time.Time
}

// Identified reports whether a user id is attached.
func (r ConnectionRecord) Identified() bool {
	return r.UserID != nil
}

type connection struct {
	userID      *int
	location    *geo.Point
	profile     PublicProfile
	rooms       map[string]struct{}
	status      string
	statusAt    *time.Time
	connectedAt time.Time
	updatedAt   time.Time
}

func (c *connection) snapshot(id string) ConnectionRecord {
	rec := ConnectionRecord{
		ConnectionID: id,
		Profile:      c.profile.clone(),
		Rooms:        make([]string, 0, len(c.rooms)),
		Status:       c.status,
		ConnectedAt:  c.connectedAt,
		UpdatedAt:    c.updatedAt,
	}
	if c.statusAt != nil {
		at := *c.statusAt
		rec.StatusUpdatedAt = &at
	}
	if c.userID != nil {
		uid := *c.userID
		rec.UserID = &uid
	}
	if c.location != nil {
		loc := *c.location
		rec.Location = &loc
	}
	for room := range c.rooms {
		rec.Rooms = append(rec.Rooms, room)
	}
	sort.Strings(rec.Rooms)
	return rec
}

type shard struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

// Registry tracks live connections. Records are spread over shards keyed
// by an FNV hash of the connection id so that updates from different
// connections rarely contend.
type Registry struct {
	shards [shardCount]*shard

	// roomsMu is always taken after a shard lock, never before.
	roomsMu sync.RWMutex
	rooms   map[string]map[string]struct{}

	now func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		rooms: make(map[string]map[string]struct{}),
		now:   time.Now,
	}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[string]*connection)}
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// Register creates an anonymous record and returns its id.
func (r *Registry) Register() string {
	id := uuid.NewString()
	now := r.now()

	s := r.shardFor(id)
	s.mu.Lock()
	s.conns[id] = &connection{
		rooms:       make(map[string]struct{}),
		connectedAt: now,
		updatedAt:   now,
	}
	s.mu.Unlock()
	return id
}

// UpdateLocation stores the latest location and profile snapshot and
// identifies the connection as userID. Last write wins.
func (r *Registry) UpdateLocation(id string, pt geo.Point, userID int, profile PublicProfile) error {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	uid := userID
	c.userID = &uid
	c.location = &pt
	c.profile = profile.clone()
	c.updatedAt = r.now()
	return nil
}

// UpdateStatus stores the connection's presence status and returns the
// time it was recorded.
func (r *Registry) UpdateStatus(id, status string) (time.Time, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return time.Time{}, ErrUnknownConnection
	}
	now := r.now()
	c.status = status
	c.statusAt = &now
	c.updatedAt = now
	return now, nil
}

// JoinRoom moves the connection into room, leaving any rooms it was in,
// and returns the rooms it left. A non-nil userID identifies an anonymous
// connection.
func (r *Registry) JoinRoom(id, room string, userID *int) ([]string, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return nil, ErrUnknownConnection
	}
	if userID != nil && c.userID == nil {
		uid := *userID
		c.userID = &uid
	}

	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()

	var left []string
	for prev := range c.rooms {
		if prev == room {
			continue
		}
		r.leaveLocked(prev, id)
		delete(c.rooms, prev)
		left = append(left, prev)
	}
	sort.Strings(left)

	c.rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
	c.updatedAt = r.now()
	return left, nil
}

func (r *Registry) leaveLocked(room, id string) {
	members := r.rooms[room]
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Remove deletes the record and returns its final state. Removing an
// unknown id is a no-op.
func (r *Registry) Remove(id string) (ConnectionRecord, bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return ConnectionRecord{}, false
	}
	rec := c.snapshot(id)
	delete(s.conns, id)

	if len(c.rooms) > 0 {
		r.roomsMu.Lock()
		for room := range c.rooms {
			r.leaveLocked(room, id)
		}
		r.roomsMu.Unlock()
	}
	return rec, true
}

// Get returns a copy of one record.
func (r *Registry) Get(id string) (ConnectionRecord, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conns[id]
	if !ok {
		return ConnectionRecord{}, false
	}
	return c.snapshot(id), true
}

// AllIdentified returns copies of every identified record. Each shard is
// locked only while it is copied.
func (r *Registry) AllIdentified() []ConnectionRecord {
	var out []ConnectionRecord
	for _, s := range r.shards {
		s.mu.RLock()
		for id, c := range s.conns {
			if c.userID != nil {
				out = append(out, c.snapshot(id))
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// ConnectionIDs returns the ids of every live connection.
func (r *Registry) ConnectionIDs() []string {
	var out []string
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.conns {
			out = append(out, id)
		}
		s.mu.RUnlock()
	}
	return out
}

// InRoom reports whether the connection is a member of room.
func (r *Registry) InRoom(id, room string) bool {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()

	_, ok := r.rooms[room][id]
	return ok
}

// RoomMembers returns the connection ids in room.
func (r *Registry) RoomMembers(room string) []string {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()

	members := r.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.conns)
		s.mu.RUnlock()
	}
	return n
}
