package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"carelink/backend/internal/apperr"
	"carelink/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultOpTimeout = 10 * time.Second

// MessageCreator persists a direct message. Implemented by messaging.Service.
type MessageCreator interface {
	CreateMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// Publisher forwards room emits to other instances. Implemented by storage.Relay.
type Publisher interface {
	Publish(ctx context.Context, room string, env models.Envelope) error
}

// ManagerService is the realtime gateway: it owns presence, rooms and event dispatch.
type ManagerService struct {
	Registry *Registry
	Rooms    *Rooms
	Messages MessageCreator

	publisher Publisher
	log       *zap.Logger
	opTimeout time.Duration
}

// NewManagerService wires the hub. log may be nil.
func NewManagerService(registry *Registry, rooms *Rooms, messages MessageCreator, log *zap.Logger) *ManagerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ManagerService{
		Registry:  registry,
		Rooms:     rooms,
		Messages:  messages,
		log:       log,
		opTimeout: defaultOpTimeout,
	}
}

// SetPublisher enables cross-instance fanout of room emits.
func (m *ManagerService) SetPublisher(p Publisher) { m.publisher = p }

// Connect registers presence for c and subscribes it to its own room.
func (m *ManagerService) Connect(c Client) {
	if prev := m.Registry.Register(c); prev != nil && prev != c {
		m.log.Info("presence replaced by newer connection", zap.String("user_id", c.GetUserID()))
	}
	m.Rooms.SubscribeSelf(c)
	m.log.Info("client connected", zap.String("user_id", c.GetUserID()))
}

// Disconnect drops every room subscription and the presence entry if it still belongs to c.
func (m *ManagerService) Disconnect(c Client) {
	m.Rooms.LeaveAll(c)
	removed := m.Registry.Unregister(c)
	m.log.Info("client disconnected", zap.String("user_id", c.GetUserID()), zap.Bool("presence_removed", removed))
}

// EmitToRoom delivers env to local members of room and publishes it for other
// instances. It returns the number of local deliveries.
func (m *ManagerService) EmitToRoom(ctx context.Context, room string, env models.Envelope) int {
	n := m.emitLocal(room, env)
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, room, env); err != nil {
			m.log.Warn("relay publish failed", zap.String("room", room), zap.Error(err))
		}
	}
	return n
}

func (m *ManagerService) emitLocal(room string, env models.Envelope) int {
	delivered := 0
	for _, c := range m.Rooms.Members(room) {
		if c.Send(env) {
			delivered++
		} else {
			m.log.Warn("frame dropped", zap.String("user_id", c.GetUserID()), zap.String("event", env.Event))
		}
	}
	return delivered
}

// EmitToUser sends env to userID's registered connection on this instance.
func (m *ManagerService) EmitToUser(userID string, env models.Envelope) bool {
	c, ok := m.Registry.Lookup(userID)
	if !ok {
		return false
	}
	return c.Send(env)
}

// HandleFrame dispatches one inbound frame from c.
func (m *ManagerService) HandleFrame(c Client, frame models.Frame) {
	switch frame.Event {
	case models.EventSendMessage:
		m.handleSendMessage(c, frame)
	case models.EventJoinRoom:
		m.handleRoom(c, frame, true)
	case models.EventLeaveRoom:
		m.handleRoom(c, frame, false)
	case models.EventStartCall:
		m.handleStartCall(c, frame)
	case models.EventAcceptCall:
		m.handleAcceptCall(c, frame)
	case models.EventRejectCall:
		m.handleRejectCall(c, frame)
	default:
		m.sendError(c, frame.ID, "unknown event")
	}
}

func (m *ManagerService) sendError(c Client, id, msg string) {
	c.Send(models.Envelope{Event: models.EventError, ID: id, Data: models.ErrorPayload{Message: msg}})
}

// decodeSendMessage accepts data either as an object or as a JSON string holding one.
func decodeSendMessage(raw json.RawMessage) (models.SendMessageRequest, error) {
	var req models.SendMessageRequest
	if len(raw) == 0 {
		return req, apperr.Validation("missing message payload")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return req, apperr.Validation("malformed message payload")
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, apperr.Validation("malformed message payload")
	}
	return req, nil
}

func (m *ManagerService) handleSendMessage(c Client, frame models.Frame) {
	senderID := c.GetUserID()
	req, err := decodeSendMessage(frame.Data)
	if err != nil {
		c.Send(models.Envelope{Event: models.EventMessageError, ID: frame.ID, Data: models.MessageError{Error: apperr.Message(err)}})
		return
	}

	// Detached from the connection: a disconnect must not abort a half-done write.
	ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
	defer cancel()

	msg, err := m.Messages.CreateMessage(ctx, senderID, req.RecipientID, req.Content)
	if err != nil {
		m.log.Warn("send message failed",
			zap.String("sender_id", senderID),
			zap.String("recipient_id", req.RecipientID),
			zap.Error(err))
		c.Send(models.Envelope{Event: models.EventMessageError, ID: frame.ID, Data: models.MessageError{Error: apperr.Message(err)}})
		return
	}

	m.EmitToRoom(ctx, msg.RecipientID, models.Envelope{Event: models.EventNewMessage, Data: msg})
	c.Send(models.Envelope{Event: models.EventMessageSent, ID: frame.ID, Data: msg})
	m.log.Debug("message sent", zap.String("message_id", msg.ID), zap.String("sender_id", senderID), zap.String("recipient_id", msg.RecipientID))
}

func (m *ManagerService) handleRoom(c Client, frame models.Frame, join bool) {
	var req models.RoomRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
		m.sendError(c, frame.ID, "Missing required fields")
		return
	}
	if join {
		// A user's id is their private push room.
		if req.RoomID != c.GetUserID() {
			ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
			taken, err := m.Messages.UserExists(ctx, req.RoomID)
			cancel()
			if err != nil {
				m.log.Warn("room owner lookup failed", zap.String("room", req.RoomID), zap.Error(err))
				m.sendError(c, frame.ID, apperr.Message(err))
				return
			}
			if taken {
				m.sendError(c, frame.ID, "Cannot join another user's room")
				return
			}
		}
		m.Rooms.Join(req.RoomID, c)
	} else {
		m.Rooms.Leave(req.RoomID, c)
	}
	c.Send(models.Envelope{Event: frame.Event, ID: frame.ID, Data: models.RoomAck{Success: true, RoomID: req.RoomID}})
}

func decodeCall[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, errors.New("empty payload")
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

func (m *ManagerService) handleStartCall(c Client, frame models.Frame) {
	call, err := decodeCall[models.StartCall](frame.Data)
	if err != nil || call.CallID == "" || call.CallerID == "" || call.RecipientID == "" {
		m.sendError(c, frame.ID, "Missing required fields")
		return
	}

	if m.EmitToUser(call.RecipientID, models.Envelope{Event: models.EventIncomingCall, Data: call}) {
		m.log.Info("call started", zap.String("call_id", call.CallID), zap.String("caller_id", call.CallerID), zap.String("recipient_id", call.RecipientID))
		return
	}
	c.Send(models.Envelope{Event: models.EventCallRejected, Data: models.RejectCall{CallID: call.CallID, UserID: call.RecipientID}})
	m.log.Info("call recipient offline", zap.String("call_id", call.CallID), zap.String("recipient_id", call.RecipientID))
}

func (m *ManagerService) handleAcceptCall(c Client, frame models.Frame) {
	call, err := decodeCall[models.AcceptCall](frame.Data)
	if err != nil || call.CallID == "" || call.CallerID == "" || call.RecipientID == "" {
		m.sendError(c, frame.ID, "Missing required fields")
		return
	}

	if m.EmitToUser(call.CallerID, models.Envelope{Event: models.EventCallAccepted, Data: call}) {
		m.log.Info("call accepted", zap.String("call_id", call.CallID), zap.String("recipient_id", call.RecipientID))
		return
	}
	m.sendError(c, frame.ID, "Caller not online")
}

func (m *ManagerService) handleRejectCall(c Client, frame models.Frame) {
	call, err := decodeCall[models.RejectCall](frame.Data)
	if err != nil || call.CallID == "" || call.UserID == "" {
		m.sendError(c, frame.ID, "Missing required fields")
		return
	}

	env := models.Envelope{Event: models.EventCallRejected, Data: call}
	for _, party := range []string{call.CallerID, call.RecipientID} {
		if party == "" {
			continue
		}
		if !m.EmitToUser(party, env) {
			m.log.Info("call party offline", zap.String("call_id", call.CallID), zap.String("user_id", party))
		}
	}
}

// Run слухає Redis Pub/Sub і доставляє події з інших інстансів локальним
// клієнтам, поки ctx не скасовано. Without a subscription it just waits for ctx.
func (m *ManagerService) Run(ctx context.Context, pubsub *redis.PubSub, origin string) {
	if pubsub == nil {
		<-ctx.Done()
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			var msg models.RelayMessage
			if err := json.Unmarshal([]byte(payload.Payload), &msg); err != nil {
				m.log.Warn("bad relay payload", zap.Error(err))
				continue
			}
			if msg.Origin == origin {
				continue
			}
			m.emitLocal(msg.Room, msg.Envelope)
		}
	}
}
