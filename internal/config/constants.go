package config

import "time"

const (
	// Auth
	DefaultTokenTTL = 24 * time.Hour
	TokenIssuer     = "carelink-service"
	BcryptCost      = 10

	// OTP
	OTPDigits = 6
	OTPTTL    = 10 * time.Minute

	// WebSocket pumps
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 64 * 1024
	SendBufferSize = 256

	// Redis relay channel shared by every instance
	BroadcastChannel = "chat:broadcast"
)

// User roles.
const (
	RolePatient = "patient"
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
)

var Roles = map[string]bool{
	RolePatient: true,
	RoleAdmin:   true,
	RoleDoctor:  true,
}
