package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carelink/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Service is the PostgreSQL backend.
type Service struct {
	DB      *gorm.DB
	Timeout time.Duration
}

// OpenPostgres connects with driver error translation on, so unique violations
// surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, timeout time.Duration) *Service {
	return &Service{DB: db, Timeout: timeout}
}

// Migrate creates or updates the three tables.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.Conversation{},
	)
}

func (s *Service) Close(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Service) db(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	return s.DB.WithContext(ctx), cancel
}

// translate maps GORM errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// Ids are uuid columns; anything else can't match and would only produce a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	db, cancel := s.db(ctx)
	defer cancel()
	return translate(db.Create(user).Error)
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	db, cancel := s.db(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db, cancel := s.db(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdateUser зберігає користувача повністю
func (s *Service) UpdateUser(ctx context.Context, user *models.User) error {
	db, cancel := s.db(ctx)
	defer cancel()
	return translate(db.Save(user).Error)
}

func (s *Service) FindConversationByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	db, cancel := s.db(ctx)
	defer cancel()

	var conv models.Conversation
	if err := db.Where("pair_key = ?", models.PairKey(a, b)).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *Service) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	db, cancel := s.db(ctx)
	defer cancel()
	return translate(db.Create(conv).Error)
}

func (s *Service) ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	if !validID(userID) {
		return []models.Conversation{}, nil
	}
	db, cancel := s.db(ctx)
	defer cancel()

	var convs []models.Conversation
	err := db.Where("? = ANY(participants)", userID).
		Order("last_message_at desc").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *Service) RecentConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if !validID(userID) {
		return []models.ConversationSummary{}, nil
	}
	db, cancel := s.db(ctx)
	defer cancel()

	var convs []models.Conversation
	err := db.Preload("LastMessage").
		Where("? = ANY(participants)", userID).
		Order("last_message_at desc").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(convs))
	lastMessages := make(map[string]*models.Message, len(convs))
	for _, c := range convs {
		// A counterpart that is not a uuid has no user row; buildSummaries drops it.
		if other := c.Other(userID); validID(other) {
			otherIDs = append(otherIDs, other)
		}
		if c.LastMessage != nil {
			lastMessages[c.LastMessage.ID] = c.LastMessage
		}
	}

	users := make(map[string]*models.User, len(otherIDs))
	if len(otherIDs) > 0 {
		var found []models.User
		if err := db.Where("id IN ?", otherIDs).Find(&found).Error; err != nil {
			return nil, err
		}
		for i := range found {
			users[found[i].ID] = &found[i]
		}
	}

	return buildSummaries(userID, convs, lastMessages, users), nil
}

// SaveMessage inserts the message and updates the conversation pointer in one transaction.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	db, cancel := s.db(ctx)
	defer cancel()

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return translate(err)
		}
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"last_message_at": msg.SentAt,
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Service) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	db, cancel := s.db(ctx)
	defer cancel()

	var msg models.Message
	if err := db.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *Service) UpdateMessage(ctx context.Context, msg *models.Message) error {
	db, cancel := s.db(ctx)
	defer cancel()
	return translate(db.Save(msg).Error)
}

// ListMessagesByConversation повертає повідомлення, від найстаріших до найновіших
func (s *Service) ListMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	db, cancel := s.db(ctx)
	defer cancel()

	var msgs []models.Message
	if err := db.Where("conversation_id = ?", conversationID).Order("sent_at asc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Service) ListUnreadMessages(ctx context.Context, recipientID string) ([]models.Message, error) {
	if !validID(recipientID) {
		return []models.Message{}, nil
	}
	db, cancel := s.db(ctx)
	defer cancel()

	var msgs []models.Message
	err := db.Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Order("sent_at desc").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
