package models_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"carelink/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Email: "a@example.com", Name: "A", Role: "patient"}
	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	err := user.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestUserBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID}

	assert.NoError(t, user.BeforeCreate(nil))
	assert.Equal(t, existingID, user.ID)
}

func TestBeforeCreate_AllCollections(t *testing.T) {
	conv := &models.Conversation{}
	msg := &models.Message{}

	assert.NoError(t, conv.BeforeCreate(nil))
	assert.NoError(t, msg.BeforeCreate(nil))
	assert.NotEmpty(t, conv.ID)
	assert.NotEmpty(t, msg.ID)
	assert.NotEqual(t, conv.ID, msg.ID)
}

// TestUserJSON_HidesSecrets makes sure the password hash and OTP never serialize.
func TestUserJSON_HidesSecrets(t *testing.T) {
	otp := "123456"
	exp := time.Now().Add(time.Minute)
	user := models.User{
		ID:         "u1",
		Email:      "a@example.com",
		Password:   "$2a$10$hash",
		Name:       "Alice",
		Role:       "doctor",
		OTP:        &otp,
		OTPExpires: &exp,
	}

	raw, err := json.Marshal(user)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "a@example.com", out["email"])
	assert.NotContains(t, out, "password")
	assert.NotContains(t, out, "otp")
	assert.NotContains(t, out, "otpExpires")
	assert.NotContains(t, string(raw), "$2a$10$hash")
}

// TestUserStructTags catches accidental tag removal during refactoring.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
	assert.Equal(t, "_id", idField.Tag.Get("bson"))

	emailField, found := userType.FieldByName("Email")
	assert.True(t, found)
	assert.Contains(t, emailField.Tag.Get("gorm"), "uniqueIndex")

	convType := reflect.TypeOf(models.Conversation{})
	parts, found := convType.FieldByName("Participants")
	assert.True(t, found)
	assert.Contains(t, parts.Tag.Get("gorm"), "type:text[]")
	key, _ := convType.FieldByName("PairKey")
	assert.Contains(t, key.Tag.Get("gorm"), "uniqueIndex")
}

func TestOTPValid(t *testing.T) {
	now := time.Now()
	code := "654321"
	future := now.Add(5 * time.Minute)
	past := now.Add(-time.Second)

	tests := []struct {
		name    string
		otp     *string
		expires *time.Time
		input   string
		want    bool
	}{
		{"match before expiry", &code, &future, "654321", true},
		{"wrong code", &code, &future, "000000", false},
		{"expired", &code, &past, "654321", false},
		{"no otp issued", nil, nil, "654321", false},
		{"empty input", &code, &future, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := models.User{OTP: tt.otp, OTPExpires: tt.expires}
			assert.Equal(t, tt.want, u.OTPValid(tt.input, now))
		})
	}

	u := models.User{OTP: &code, OTPExpires: &future}
	u.ClearOTP()
	assert.Nil(t, u.OTP)
	assert.Nil(t, u.OTPExpires)
}

func TestCanonicalPair_OrderIndependent(t *testing.T) {
	assert.Equal(t, models.CanonicalPair("u2", "u1"), models.CanonicalPair("u1", "u2"))
	assert.Equal(t, "u1:u2", models.PairKey("u2", "u1"))
	assert.Equal(t, models.PairKey("b", "a"), models.PairKey("a", "b"))
}

func TestNewConversation(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	conv := models.NewConversation("u2", "u1", now)

	assert.Equal(t, []string{"u1", "u2"}, []string(conv.Participants))
	assert.Equal(t, "u1:u2", conv.PairKey)
	assert.Equal(t, now, conv.CreatedAt)
	assert.Equal(t, now, conv.UpdatedAt)
	assert.Nil(t, conv.LastMessageID)
	assert.Equal(t, "u2", conv.Other("u1"))
	assert.True(t, conv.Has("u2"))
	assert.False(t, conv.Has("u3"))
}

func TestMessageMarkRead_AdvancesTimestamp(t *testing.T) {
	m := models.Message{}
	first := time.Now()
	m.MarkRead(first)
	second := first.Add(time.Second)
	m.MarkRead(second)

	assert.True(t, m.IsRead)
	require.NotNil(t, m.ReadAt)
	assert.Equal(t, second, *m.ReadAt)
}

// BenchmarkUserBeforeCreate measures UUID generation performance.
func BenchmarkUserBeforeCreate(b *testing.B) {
	user := &models.User{Email: "bench@example.com"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user.ID = ""
		_ = user.BeforeCreate(nil)
	}
}
