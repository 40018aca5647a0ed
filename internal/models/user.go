package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account holder. The password hash and OTP state never leave the
// server: their json tags are "-".
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id" bson:"_id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	Password string `gorm:"not null" json:"-" bson:"password"`
	Name     string `gorm:"not null" json:"name" bson:"name"`
	// Role is one of config.Roles.
	Role     string `gorm:"not null;index" json:"role" bson:"role"`
	DoctorID string `gorm:"column:doctor_id" json:"doctorId,omitempty" bson:"doctor_id,omitempty"`
	Photo    string `json:"photo,omitempty" bson:"photo,omitempty"`

	OTP        *string    `gorm:"column:otp" json:"-" bson:"otp,omitempty"`
	OTPExpires *time.Time `gorm:"column:otp_expires" json:"-" bson:"otp_expires,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// PublicUser is the profile shown to other participants.
type PublicUser struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// OTPValid reports whether code matches the stored OTP and it has not expired at now.
func (u *User) OTPValid(code string, now time.Time) bool {
	if u.OTP == nil || u.OTPExpires == nil || code == "" {
		return false
	}
	return *u.OTP == code && !u.OTPExpires.Before(now)
}

// ClearOTP drops the one-time password after a successful reset.
func (u *User) ClearOTP() {
	u.OTP = nil
	u.OTPExpires = nil
}

// EnsureID assigns a fresh UUID when the record has none. Stores that do not go
// through GORM call it directly.
func (u *User) EnsureID() {
	if u.ID == "" {
		u.ID = NewID()
	}
}

// BeforeCreate is a GORM hook that generates the UUID before insert.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	u.EnsureID()
	return
}

// NewID returns a random UUID string used as primary key for every collection.
func NewID() string {
	return uuid.New().String()
}
