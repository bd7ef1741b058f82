package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gdugdh24/yuno-backend/internal/geo"
)

// Inbound events.
const (
	EventUpdateLocation = "update_location"
	EventDiscoverNearby = "discover_nearby"
	EventJoinChat       = "join_chat"
	EventUpdateStatus   = "update_status"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventPing           = "ping"
)

// Outbound events.
const (
	EventConnected        = "connected"
	EventNearbyUserUpdate = "nearby_user_update"
	EventNearbyUsers      = "nearby_users"
	EventUserJoined       = "user_joined"
	EventUserDisconnected = "user_disconnected"
	EventUserStatusUpdate = "user_status_update"
	EventUserTyping       = "user_typing"
	EventUserStopTyping   = "user_stop_typing"
	EventError            = "error"
	EventPong             = "pong"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrSlowConsumer      = errors.New("send buffer full")
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PublicProfile is what a user shares with nearby connections.
type PublicProfile struct {
	Name      string   `json:"name,omitempty"`
	Age       *int     `json:"age,omitempty"`
	City      string   `json:"city,omitempty"`
	School    string   `json:"school,omitempty"`
	College   string   `json:"college,omitempty"`
	Workplace string   `json:"workplace,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

func (p PublicProfile) clone() PublicProfile {
	if p.Age != nil {
		age := *p.Age
		p.Age = &age
	}
	if p.Interests != nil {
		p.Interests = append([]string(nil), p.Interests...)
	}
	return p
}

type UpdateLocationRequest struct {
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
	UserID    *int          `json:"userId"`
	UserData  PublicProfile `json:"userData"`
}

// Validate checks the request and returns the parsed point.
func (r *UpdateLocationRequest) Validate() (geo.Point, error) {
	pt, err := point(r.Latitude, r.Longitude)
	if err != nil {
		return geo.Point{}, err
	}
	if r.UserID == nil || *r.UserID <= 0 {
		return geo.Point{}, fmt.Errorf("%w: userId is required", ErrInvalidPayload)
	}
	return pt, nil
}

type DiscoverNearbyRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Radius    *float64 `json:"radius"`
}

// Validate checks the coordinates; the radius is checked against the
// broadcaster's limits.
func (r *DiscoverNearbyRequest) Validate() (geo.Point, error) {
	return point(r.Latitude, r.Longitude)
}

// JoinChatRequest accepts either {"chatId": "...", "userId": 5} or a bare
// chat id string.
type JoinChatRequest struct {
	ChatID string `json:"chatId"`
	UserID *int   `json:"userId,omitempty"`
}

func (r *JoinChatRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ChatID)
	}
	type plain JoinChatRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = JoinChatRequest(p)
	return nil
}

func (r *JoinChatRequest) Validate() error {
	r.ChatID = strings.TrimSpace(r.ChatID)
	if r.ChatID == "" {
		return fmt.Errorf("%w: chatId is required", ErrInvalidPayload)
	}
	if len(r.ChatID) > 128 {
		return fmt.Errorf("%w: chatId too long", ErrInvalidPayload)
	}
	if r.UserID != nil && *r.UserID <= 0 {
		return fmt.Errorf("%w: userId must be positive", ErrInvalidPayload)
	}
	return nil
}

const maxStatusLen = 64

// UpdateStatusRequest accepts either {"status": "away"} or a bare status
// string.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Status)
	}
	type plain UpdateStatusRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = UpdateStatusRequest(p)
	return nil
}

func (r *UpdateStatusRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidPayload)
	}
	if len(r.Status) > maxStatusLen {
		return fmt.Errorf("%w: status too long", ErrInvalidPayload)
	}
	return nil
}

// TypingRequest is the payload of typing and stop_typing. IsTyping
// defaults to true for typing and is ignored for stop_typing.
type TypingRequest struct {
	ChatID   string `json:"chatId"`
	IsTyping *bool  `json:"isTyping,omitempty"`
}

func (r *TypingRequest) Validate() error {
	r.ChatID = strings.TrimSpace(r.ChatID)
	if r.ChatID == "" {
		return fmt.Errorf("%w: chatId is required", ErrInvalidPayload)
	}
	if len(r.ChatID) > 128 {
		return fmt.Errorf("%w: chatId too long", ErrInvalidPayload)
	}
	return nil
}

func point(lat, lng *float64) (geo.Point, error) {
	if lat == nil || lng == nil {
		return geo.Point{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidPayload)
	}
	pt := geo.Point{Lat: *lat, Lng: *lng}
	if err := pt.Validate(); err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return pt, nil
}

// NearbyUserUpdate announces a moving user to a connection in range.
type NearbyUserUpdate struct {
	Type      string        `json:"type"`
	UserID    int           `json:"userId"`
	UserData  PublicProfile `json:"userData"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Distance  float64       `json:"distance"`
	Timestamp time.Time     `json:"timestamp"`
}

type NearbyUser struct {
	ConnectionID string        `json:"connectionId"`
	UserID       int           `json:"userId"`
	UserData     PublicProfile `json:"userData"`
	Distance     float64       `json:"distance"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
}

type NearbyUsersResponse struct {
	Users     []NearbyUser `json:"users"`
	Radius    float64      `json:"radius"`
	Timestamp time.Time    `json:"timestamp"`
}

type UserJoined struct {
	ConnectionID string    `json:"connectionId"`
	UserID       *int      `json:"userId,omitempty"`
	ChatID       string    `json:"chatId"`
	Timestamp    time.Time `json:"timestamp"`
}

type UserDisconnected struct {
	ConnectionID string    `json:"connectionId"`
	UserID       *int      `json:"userId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type UserStatusUpdate struct {
	ConnectionID string    `json:"connectionId"`
	UserID       *int      `json:"userId,omitempty"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

type UserTyping struct {
	ConnectionID string `json:"connectionId"`
	UserID       *int   `json:"userId,omitempty"`
	ChatID       string `json:"chatId"`
	IsTyping     bool   `json:"isTyping"`
}

type UserStopTyping struct {
	ConnectionID string `json:"connectionId"`
	UserID       *int   `json:"userId,omitempty"`
	ChatID       string `json:"chatId"`
}

type Connected struct {
	ConnectionID string `json:"connectionId"`
}

type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
