package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/avicare/avicare/internal/platform/notification"
	"github.com/avicare/avicare/internal/platform/session"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// phoneRe accepts E.164-style numbers: optional +, 10 to 15 digits.
var phoneRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

type Service struct {
	users      UserRepository
	admins     AdminRepository
	sessions   session.Store
	sms        *notification.Manager
	otpSecret  []byte
	sessionTTL time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(users UserRepository, admins AdminRepository, sessions session.Store,
	sms *notification.Manager, otpSecret []byte, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		users:      users,
		admins:     admins,
		sessions:   sessions,
		sms:        sms,
		otpSecret:  otpSecret,
		sessionTTL: sessionTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// RequestOTP generates a one-time code, sends it by SMS, and returns the
// signed challenge token the client presents on verify. SMS delivery is
// best-effort: a failure is logged and the flow continues.
func (s *Service) RequestOTP(ctx context.Context, phone string) (string, error) {
	if !phoneRe.MatchString(phone) {
		return "", fmt.Errorf("invalid phone number")
	}
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	challenge, err := IssueChallenge(s.otpSecret, phone, code, s.now().UTC())
	if err != nil {
		return "", err
	}

	if _, err := s.sms.SendFromTemplate(ctx, "otp-code", map[string]string{
		"code":    code,
		"minutes": "5",
	}, phone); err != nil {
		s.logger.Warn().Err(err).Str("phone", phone).Msg("otp sms delivery failed")
	}
	return challenge, nil
}

// VerifyOTP validates the challenge, upserts the user, and opens a session.
func (s *Service) VerifyOTP(ctx context.Context, phone, code, challenge string) (*session.Session, error) {
	if err := VerifyChallenge(s.otpSecret, challenge, phone, code); err != nil {
		return nil, err
	}
	user, err := s.users.UpsertByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.openSession(ctx, &user.Phone, nil)
}

// AdminLogin checks the password and opens an admin session.
func (s *Service) AdminLogin(ctx context.Context, username, password string) (*session.Session, error) {
	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(ctx, nil, &admin.ID)
}

func (s *Service) openSession(ctx context.Context, phone *string, adminID *uuid.UUID) (*session.Session, error) {
	token, err := session.NewToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &session.Session{
		Token:     token,
		UserPhone: phone,
		AdminID:   adminID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Logout removes the session row. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// CreateAdmin hashes the password and stores a new admin account.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*Admin, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := &Admin{Username: username, PasswordHash: string(hash)}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// GetUser returns the account for the given phone.
func (s *Service) GetUser(ctx context.Context, phone string) (*User, error) {
	return s.users.GetByPhone(ctx, phone)
}

// UpdateName sets the display name on the caller's account.
func (s *Service) UpdateName(ctx context.Context, phone, name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	return s.users.UpdateName(ctx, phone, name)
}
