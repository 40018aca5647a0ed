// Package users implements account signup, login and the OTP password reset flow.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"carelink/backend/internal/apperr"
	"carelink/backend/internal/auth"
	"carelink/backend/internal/config"
	"carelink/backend/internal/localization"
	"carelink/backend/internal/models"
	"carelink/backend/internal/storage"

	"go.uber.org/zap"
)

// Mailer is the subset of mail.Mailer the reset flow needs.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	store  storage.Storage
	tokens *auth.Tokens
	mailer Mailer
	loc    *localization.Localizer
	log    *zap.Logger

	now    func() time.Time
	genOTP func() (string, error)
}

func NewService(store storage.Storage, tokens *auth.Tokens, mailer Mailer, loc *localization.Localizer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  store,
		tokens: tokens,
		mailer: mailer,
		loc:    loc,
		log:    log,
		now:    time.Now,
		genOTP: generateOTP,
	}
}

// SetOTPGenerator replaces the random code source.
func (s *Service) SetOTPGenerator(fn func() (string, error)) { s.genOTP = fn }

// SetClock replaces the time source used for OTP expiry.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type SignupInput struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"required,max=120"`
	Role     string `json:"role" binding:"required,oneof=patient admin doctor"`
	DoctorID string `json:"doctorId"`
	Photo    string `json:"photo"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account with a bcrypt-hashed password.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, validationError("", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, hashError(err)
	}

	user := &models.User{
		ID:       models.NewID(),
		Email:    in.Email,
		Password: hash,
		Name:     in.Name,
		Role:     in.Role,
		Photo:    in.Photo,
	}
	if in.Role == config.RoleDoctor {
		user.DoctorID = in.DoctorID
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.New(apperr.KindConflict, "User creation failed")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "create user", err)
	}
	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return "", apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "load user", err)
	}
	if !auth.CheckPassword(user.Password, password) {
		s.log.Info("login rejected", zap.String("user_id", user.ID))
		return "", apperr.Unauthorized("Invalid credentials")
	}

	token, err := s.tokens.Sign(user.ID, user.Email)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "sign token", err)
	}
	return token, nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load user", err)
	}
	return user, nil
}

// ForgotPassword stores a fresh OTP on the account and emails it in lang.
// It returns the user id; the code itself only travels by email.
func (s *Service) ForgotPassword(ctx context.Context, email, lang string) (string, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	code, err := s.genOTP()
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "generate otp", err)
	}
	expires := s.now().Add(config.OTPTTL)
	user.OTP = &code
	user.OTPExpires = &expires
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "save otp", err)
	}

	subject := s.loc.GetString(lang, "otp_email_subject")
	body := s.loc.Format(lang, "otp_email_body", code, int(config.OTPTTL/time.Minute))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.log.Error("otp email failed", zap.String("user_id", user.ID), zap.Error(err))
		return "", apperr.Upstream("Failed to send OTP email", err)
	}

	s.log.Info("otp issued", zap.String("user_id", user.ID), zap.Time("expires", expires))
	return user.ID, nil
}

// VerifyOTP checks the code without consuming it.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.OTPValid(otp, s.now()) {
		return apperr.Validation("Invalid or expired OTP")
	}
	return nil
}

// ResetPassword replaces the password and clears the OTP.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.OTPValid(otp, s.now()) {
		return apperr.Validation("Invalid or expired OTP")
	}
	if err := validate.Var(newPassword, passwordRules); err != nil {
		return validationError("newPassword", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return hashError(err)
	}
	user.Password = hash
	user.ClearOTP()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return apperr.Wrap(apperr.KindInternal, "Failed to reset password", err)
	}
	s.log.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// generateOTP returns a uniformly random code of config.OTPDigits digits with no leading zero.
func generateOTP() (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(config.OTPDigits-1), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(low, big.NewInt(10)), low)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(n.Add(n, low)), nil
}
