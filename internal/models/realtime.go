package models

import "encoding/json"

// Events received from clients.
const (
	EventSendMessage = "sendMessage"
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventStartCall   = "start_call"
	EventAcceptCall  = "accept_call"
	EventRejectCall  = "reject_call"
)

// Events pushed to clients.
const (
	EventNewMessage   = "newMessage"
	EventMessageSent  = "messageSent"
	EventMessageError = "messageError"
	EventIncomingCall = "incoming_call"
	EventCallAccepted = "call_accepted"
	EventCallRejected = "call_rejected"
	EventError        = "error"
)

// Frame is an inbound WebSocket frame. ID is echoed back on acks.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is an outbound WebSocket frame.
type Envelope struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// SendMessageRequest is used by both the WebSocket sendMessage event and POST /messages/send.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type RoomAck struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
}

type MessageError struct {
	Error string `json:"error"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type StartCall struct {
	CallID        string `json:"callId"`
	CallerID      string `json:"callerId"`
	CallerName    string `json:"callerName"`
	RecipientID   string `json:"recipientId"`
	RecipientName string `json:"recipientName"`
	CallType      string `json:"callType"`
}

type AcceptCall struct {
	CallID      string `json:"callId"`
	CallerID    string `json:"callerId"`
	RecipientID string `json:"recipientId"`
}

// RejectCall is both the reject_call request and the call_rejected notification.
type RejectCall struct {
	CallID      string `json:"callId"`
	UserID      string `json:"userId"`
	CallerID    string `json:"callerId,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
}

// RelayMessage is what instances exchange over the Redis broadcast channel.
type RelayMessage struct {
	Origin   string   `json:"origin"`
	Room     string   `json:"room"`
	Envelope Envelope `json:"envelope"`
}
