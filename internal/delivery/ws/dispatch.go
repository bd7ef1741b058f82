package ws

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/metrics"
	"github.com/gdugdh24/yuno-backend/internal/realtime"
)

// dispatch handles one inbound event. Failures are reported to the
// sending connection as an error event and leave state untouched.
func (h *Hub) dispatch(c *Client, env realtime.Envelope) {
	if !c.limiter.Allow() {
		h.reject(c, env.Event, "rate limit exceeded")
		return
	}

	var err error
	switch env.Event {
	case realtime.EventUpdateLocation:
		err = h.handleUpdateLocation(c, env.Data)
	case realtime.EventDiscoverNearby:
		err = h.handleDiscoverNearby(c, env.Data)
	case realtime.EventJoinChat:
		err = h.handleJoinChat(c, env.Data)
	case realtime.EventUpdateStatus:
		err = h.handleUpdateStatus(c, env.Data)
	case realtime.EventTyping:
		err = h.handleTyping(c, env.Data, true)
	case realtime.EventStopTyping:
		err = h.handleTyping(c, env.Data, false)
	case realtime.EventPing:
		err = h.Notify(c.id, realtime.EventPong, realtime.Pong{Timestamp: time.Now().UTC()})
	default:
		h.reject(c, "unknown", fmt.Sprintf("unknown event %q", env.Event))
		return
	}

	if err != nil {
		h.reject(c, env.Event, message(env.Event, err))
		return
	}
	metrics.RecordWSEvent(env.Event, "ok")
}

func (h *Hub) handleUpdateLocation(c *Client, data json.RawMessage) error {
	var req realtime.UpdateLocationRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := c.applyAuth(&req.UserID); err != nil {
		return err
	}
	pt, err := req.Validate()
	if err != nil {
		return err
	}
	_, err = h.broadcaster.OnLocationUpdate(c.id, pt, *req.UserID, req.UserData)
	return err
}

func (h *Hub) handleDiscoverNearby(c *Client, data json.RawMessage) error {
	var req realtime.DiscoverNearbyRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	pt, err := req.Validate()
	if err != nil {
		return err
	}
	_, err = h.broadcaster.DiscoverNearby(c.id, pt, req.Radius)
	return err
}

func (h *Hub) handleJoinChat(c *Client, data json.RawMessage) error {
	var req realtime.JoinChatRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := c.applyAuth(&req.UserID); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return h.broadcaster.JoinChat(c.id, req)
}

func (h *Hub) handleUpdateStatus(c *Client, data json.RawMessage) error {
	var req realtime.UpdateStatusRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	_, err := h.broadcaster.UpdateStatus(c.id, req)
	return err
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage, typing bool) error {
	var req realtime.TypingRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	_, err := h.broadcaster.Typing(c.id, req, typing)
	return err
}

// applyAuth pins the payload's user id to the authenticated one.
func (c *Client) applyAuth(userID **int) error {
	if c.authUserID == nil {
		return nil
	}
	if *userID != nil && **userID != *c.authUserID {
		return fmt.Errorf("%w: userId does not match the authenticated user", realtime.ErrInvalidPayload)
	}
	uid := *c.authUserID
	*userID = &uid
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", realtime.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", realtime.ErrInvalidPayload, err)
	}
	return nil
}

func message(event string, err error) string {
	if errors.Is(err, realtime.ErrInvalidPayload) {
		return err.Error()
	}
	switch event {
	case realtime.EventJoinChat:
		return "Failed to join chat"
	case realtime.EventDiscoverNearby:
		return "Failed to discover nearby users"
	case realtime.EventUpdateStatus:
		return "Failed to update status"
	case realtime.EventTyping, realtime.EventStopTyping:
		return "Failed to send typing indicator"
	default:
		return "Failed to update location"
	}
}

func (h *Hub) reject(c *Client, event, msg string) {
	switch event {
	case "":
		event = "malformed"
	case realtime.EventUpdateLocation, realtime.EventDiscoverNearby, realtime.EventJoinChat,
		realtime.EventUpdateStatus, realtime.EventTyping, realtime.EventStopTyping, realtime.EventPing:
	default:
		event = "unknown"
	}
	metrics.RecordWSEvent(event, "rejected")
	logging.Debug().Str("connection_id", c.id).Str("event", event).Str("reason", msg).Msg("websocket event rejected")

	if err := h.Notify(c.id, realtime.EventError, realtime.ErrorPayload{Message: msg}); err != nil {
		logging.Debug().Err(err).Str("connection_id", c.id).Msg("failed to send error event")
	}
}
