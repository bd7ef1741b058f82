package realtime

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/metrics"
)

// Notifier pushes a named event to one connection. Implementations must
// not block on slow receivers.
type Notifier interface {
	Notify(connectionID, event string, payload any) error
}

type Config struct {
	BroadcastRadiusKm   float64
	DiscoverRadiusKm    float64
	MaxDiscoverRadiusKm float64
}

func DefaultConfig() Config {
	return Config{
		BroadcastRadiusKm:   20,
		DiscoverRadiusKm:    20,
		MaxDiscoverRadiusKm: 100,
	}
}

// Broadcaster turns connection events into pushes to other connections.
// Every operation snapshots the registry first and computes outside its
// locks.
type Broadcaster struct {
	registry *Registry
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

func NewBroadcaster(registry *Registry, notifier Notifier, cfg Config) *Broadcaster {
	def := DefaultConfig()
	if cfg.BroadcastRadiusKm <= 0 {
		cfg.BroadcastRadiusKm = def.BroadcastRadiusKm
	}
	if cfg.MaxDiscoverRadiusKm <= 0 {
		cfg.MaxDiscoverRadiusKm = def.MaxDiscoverRadiusKm
	}
	if cfg.DiscoverRadiusKm <= 0 || cfg.DiscoverRadiusKm > cfg.MaxDiscoverRadiusKm {
		cfg.DiscoverRadiusKm = math.Min(def.DiscoverRadiusKm, cfg.MaxDiscoverRadiusKm)
	}
	return &Broadcaster{
		registry: registry,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Registry returns the registry the broadcaster reads from.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// OnLocationUpdate records the new location and announces it to every
// other identified connection within the broadcast radius. The mover is
// not told about the others. Returns the number of connections notified.
func (b *Broadcaster) OnLocationUpdate(connectionID string, pt geo.Point, userID int, profile PublicProfile) (int, error) {
	if err := b.registry.UpdateLocation(connectionID, pt, userID, profile); err != nil {
		return 0, err
	}

	update := NearbyUserUpdate{
		Type:      "user_location_update",
		UserID:    userID,
		UserData:  profile.clone(),
		Latitude:  pt.Lat,
		Longitude: pt.Lng,
		Timestamp: b.now().UTC(),
	}

	notified := 0
	for _, rec := range b.registry.AllIdentified() {
		if rec.ConnectionID == connectionID || rec.Location == nil {
			continue
		}
		if rec.UserID != nil && *rec.UserID == userID {
			continue
		}
		d := geo.DistanceKm(pt, *rec.Location)
		if d > b.cfg.BroadcastRadiusKm {
			continue
		}

		payload := update
		payload.Distance = geo.Round2(d)
		if b.notify(rec.ConnectionID, EventNearbyUserUpdate, payload) {
			notified++
		}
	}
	metrics.ProximityNotifications.Add(float64(notified))
	return notified, nil
}

// DiscoverNearby scans live connections within radiusKm of pt, nearest
// first, and pushes them to the caller as nearby_users. A nil radius uses
// the configured default.
func (b *Broadcaster) DiscoverNearby(connectionID string, pt geo.Point, radiusKm *float64) ([]NearbyUser, error) {
	radius := b.cfg.DiscoverRadiusKm
	if radiusKm != nil {
		radius = *radiusKm
	}
	if math.IsNaN(radius) || radius <= 0 || radius > b.cfg.MaxDiscoverRadiusKm {
		return nil, fmt.Errorf("%w: radius must be in (0, %g] km", ErrInvalidPayload, b.cfg.MaxDiscoverRadiusKm)
	}

	self, ok := b.registry.Get(connectionID)
	if !ok {
		return nil, ErrUnknownConnection
	}

	users := make([]NearbyUser, 0)
	for _, rec := range b.registry.AllIdentified() {
		if rec.ConnectionID == connectionID || rec.Location == nil {
			continue
		}
		if self.UserID != nil && *rec.UserID == *self.UserID {
			continue
		}
		d := geo.DistanceKm(pt, *rec.Location)
		if d > radius {
			continue
		}
		users = append(users, NearbyUser{
			ConnectionID: rec.ConnectionID,
			UserID:       *rec.UserID,
			UserData:     rec.Profile,
			Distance:     d,
			Latitude:     rec.Location.Lat,
			Longitude:    rec.Location.Lng,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Distance != users[j].Distance {
			return users[i].Distance < users[j].Distance
		}
		return users[i].ConnectionID < users[j].ConnectionID
	})
	for i := range users {
		users[i].Distance = geo.Round2(users[i].Distance)
	}

	b.notify(connectionID, EventNearbyUsers, NearbyUsersResponse{
		Users:     users,
		Radius:    radius,
		Timestamp: b.now().UTC(),
	})
	return users, nil
}

// JoinChat moves the connection into a chat room and tells the room's
// other members.
func (b *Broadcaster) JoinChat(connectionID string, req JoinChatRequest) error {
	left, err := b.registry.JoinRoom(connectionID, req.ChatID, req.UserID)
	if err != nil {
		return err
	}

	rec, _ := b.registry.Get(connectionID)
	joined := UserJoined{
		ConnectionID: connectionID,
		UserID:       rec.UserID,
		ChatID:       req.ChatID,
		Timestamp:    b.now().UTC(),
	}
	for _, member := range b.registry.RoomMembers(req.ChatID) {
		if member != connectionID {
			b.notify(member, EventUserJoined, joined)
		}
	}

	logging.Debug().
		Str("connection_id", connectionID).
		Str("chat_id", req.ChatID).
		Strs("left", left).
		Msg("connection joined chat")
	return nil
}

// UpdateStatus records the connection's status and announces it to every
// live connection, the sender included. Returns the number notified.
func (b *Broadcaster) UpdateStatus(connectionID string, req UpdateStatusRequest) (int, error) {
	at, err := b.registry.UpdateStatus(connectionID, req.Status)
	if err != nil {
		return 0, err
	}

	rec, _ := b.registry.Get(connectionID)
	update := UserStatusUpdate{
		ConnectionID: connectionID,
		UserID:       rec.UserID,
		Status:       req.Status,
		Timestamp:    at.UTC(),
	}

	notified := 0
	for _, id := range b.registry.ConnectionIDs() {
		if b.notify(id, EventUserStatusUpdate, update) {
			notified++
		}
	}
	return notified, nil
}

// Typing relays a typing indicator to the other members of a chat room
// the connection has joined. typing false sends user_stop_typing.
func (b *Broadcaster) Typing(connectionID string, req TypingRequest, typing bool) (int, error) {
	rec, ok := b.registry.Get(connectionID)
	if !ok {
		return 0, ErrUnknownConnection
	}
	if !b.registry.InRoom(connectionID, req.ChatID) {
		return 0, fmt.Errorf("%w: not a member of chat %q", ErrInvalidPayload, req.ChatID)
	}

	event := EventUserStopTyping
	var payload any = UserStopTyping{
		ConnectionID: connectionID,
		UserID:       rec.UserID,
		ChatID:       req.ChatID,
	}
	if typing {
		isTyping := true
		if req.IsTyping != nil {
			isTyping = *req.IsTyping
		}
		event = EventUserTyping
		payload = UserTyping{
			ConnectionID: connectionID,
			UserID:       rec.UserID,
			ChatID:       req.ChatID,
			IsTyping:     isTyping,
		}
	}

	notified := 0
	for _, member := range b.registry.RoomMembers(req.ChatID) {
		if member == connectionID {
			continue
		}
		if b.notify(member, event, payload) {
			notified++
		}
	}
	return notified, nil
}

// Disconnect removes the connection and tells everyone still connected.
// Safe to call more than once.
func (b *Broadcaster) Disconnect(connectionID string) {
	rec, ok := b.registry.Remove(connectionID)
	if !ok {
		return
	}

	gone := UserDisconnected{
		ConnectionID: connectionID,
		UserID:       rec.UserID,
		Timestamp:    b.now().UTC(),
	}
	for _, id := range b.registry.ConnectionIDs() {
		b.notify(id, EventUserDisconnected, gone)
	}
}

func (b *Broadcaster) notify(connectionID, event string, payload any) bool {
	err := b.notifier.Notify(connectionID, event, payload)
	if err == nil {
		return true
	}
	// The target may have disconnected after the snapshot was taken.
	if errors.Is(err, ErrUnknownConnection) {
		return false
	}
	if errors.Is(err, ErrSlowConsumer) {
		metrics.DroppedMessages.Inc()
	}
	logging.Warn().Err(err).
		Str("connection_id", connectionID).
		Str("event", event).
		Msg("failed to push event")
	return false
}
