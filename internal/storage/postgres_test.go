package storage_test

import (
	"context"
	"testing"
	"time"

	"carelink/backend/internal/models"
	"carelink/backend/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresMock returns a gorm-backed store whose SQL goes to sqlmock.
func newPostgresMock(t *testing.T) (*storage.Service, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	return storage.NewStorageService(db, time.Second), mock
}

var conversationColumns = []string{"id", "participants", "pair_key", "created_at", "updated_at", "last_message_id", "last_message_at"}

func TestPostgres_RecentConversationsSkipsNonUUIDCounterpart(t *testing.T) {
	s, mock := newPostgresMock(t)
	me, alice := uuid.NewString(), uuid.NewString()
	lastID := uuid.NewString()
	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE \$1 = ANY\(participants\) ORDER BY last_message_at desc`).
		WithArgs(me).
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c1", "{"+me+",not-a-uuid}", models.PairKey(me, "not-a-uuid"), older, newer, nil, newer).
			AddRow("c2", "{"+alice+","+me+"}", models.PairKey(me, alice), older, older, lastID, older))
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE "messages"."id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "conversation_id", "content", "sent_at", "is_read"}).
			AddRow(lastID, alice, me, "c2", "hello", older, false))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id IN \(\$1\)`).
		WithArgs(alice).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name"}).
			AddRow(alice, "alice@example.com", "Alice"))

	got, err := s.RecentConversations(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)
	assert.Equal(t, "Alice", got[0].User.Name)
	require.NotNil(t, got[0].LastMessage)
	assert.Equal(t, "hello", got[0].LastMessage.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecentConversationsOnlyNonUUIDCounterparts(t *testing.T) {
	s, mock := newPostgresMock(t)
	me := uuid.NewString()
	now := time.Now().UTC()

	mock.ExpectQuery(`= ANY\(participants\)`).
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c1", "{"+me+",bogus}", models.PairKey(me, "bogus"), now, now, nil, now))

	got, err := s.RecentConversations(context.Background(), me)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet(), "no users query is issued")
}

func TestPostgres_ListConversationsForUser(t *testing.T) {
	s, mock := newPostgresMock(t)
	me, other := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE \$1 = ANY\(participants\)`).
		WithArgs(me).
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c1", "{"+me+","+other+"}", models.PairKey(me, other), now, now, nil, now))

	convs, err := s.ListConversationsForUser(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.ElementsMatch(t, []string{me, other}, []string(convs[0].Participants))
	assert.Nil(t, convs[0].LastMessageID)

	// ids that cannot be uuids never reach the database
	convs, err = s.ListConversationsForUser(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveMessageIsTransactional(t *testing.T) {
	s, mock := newPostgresMock(t)
	msg := &models.Message{
		ID:             uuid.NewString(),
		SenderID:       uuid.NewString(),
		RecipientID:    uuid.NewString(),
		ConversationID: uuid.NewString(),
		Content:        "hi",
		SentAt:         time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "messages"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "conversations" SET .*WHERE id = \$\d+`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveMessage(context.Background(), msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveMessageRollsBackWithoutConversation(t *testing.T) {
	s, mock := newPostgresMock(t)
	msg := &models.Message{
		ID:             uuid.NewString(),
		SenderID:       uuid.NewString(),
		RecipientID:    uuid.NewString(),
		ConversationID: uuid.NewString(),
		Content:        "hi",
		SentAt:         time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "messages"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "conversations"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.SaveMessage(context.Background(), msg)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateUserDuplicate(t *testing.T) {
	s, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := s.CreateUser(context.Background(), &models.User{Email: "a@example.com", Name: "A", Password: "h", Role: "patient"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LookupsTranslateNotFound(t *testing.T) {
	s, mock := newPostgresMock(t)
	ctx := context.Background()

	_, err := s.GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetMessageByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))
	_, err = s.GetUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
