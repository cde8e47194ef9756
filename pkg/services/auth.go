package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/apperr"
	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/token"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	// bcrypt ignores anything past 72 bytes and x/crypto rejects longer input
	MaxPasswordBytes = 72

	TokenTypeBearer = "bearer"
)

var (
	validate = validator.New()

	errInvalidCredentials = apperr.Unauthenticated("incorrect username or password", nil)
	errUnknownSubject     = errors.New("token subject does not match any user")
)

// Session is what register and login hand back to the client.
type Session struct {
	AccessToken string
	TokenType   string
	User        *models.User
}

type RegisterInput struct {
	Username string
	Password string
	Email    *string
	FullName *string
}

// AuthService owns the credential workflow: registration, login and
// resolving a bearer token to an active user.
type AuthService struct {
	db     *gorm.DB
	issuer *token.Issuer
	log    logging.Logger
}

func NewAuthService(db *gorm.DB, issuer *token.Issuer, log logging.Logger) *AuthService {
	return &AuthService{db: db, issuer: issuer, log: log}
}

// Register creates an active user and returns a session for it. Username is
// always unique; email is unique only when present, an empty email is stored
// as NULL.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, apperr.Validation("username", "username must be between 3 and 50 characters")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, apperr.Validation("password", "password must be at least 6 characters")
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, apperr.Validation("password", "password must be at most 72 bytes")
	}

	email := normalizeEmail(in.Email)
	if email != nil {
		if err := validate.Var(*email, "email,max=255"); err != nil {
			return nil, apperr.Validation("email", "email is not a valid address")
		}
	}
	fullName := trimmedOrNil(in.FullName)
	if fullName != nil && utf8.RuneCountInString(*fullName) > 255 {
		return nil, apperr.Validation("full_name", "full name must be at most 255 characters")
	}

	q := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username)
	if email != nil {
		q = q.Or("email = ?", *email)
	}
	var existing int64
	if err := q.Count(&existing).Error; err != nil {
		return nil, apperr.Persistence("check existing user", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("username or email already registered")
	}

	user := models.User{
		Username: username,
		Email:    email,
		FullName: fullName,
		IsActive: true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// a concurrent registration can slip past the pre-check
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("username or email already registered")
		}
		return nil, apperr.Persistence("create user", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return s.newSession(&user)
}

// Login verifies credentials. An unknown username and a wrong password return
// the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Persistence("load user", err)
	}
	if !user.CheckPassword(password) {
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperr.InactiveAccount()
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID, "username", user.Username)
	return s.newSession(&user)
}

// Authenticate resolves a bearer token to its active user. Token failures are
// all reported as Unauthenticated; the wrapped cause tells them apart.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*models.User, error) {
	subject, err := s.issuer.Verify(tokenStr)
	if err != nil {
		return nil, apperr.Unauthenticated("could not validate credentials", err)
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("username = ?", subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthenticated("could not validate credentials", errUnknownSubject)
	}
	if err != nil {
		return nil, apperr.Persistence("load user", err)
	}
	if !user.IsActive {
		return nil, apperr.InactiveAccount()
	}
	return &user, nil
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	tok, err := s.issuer.Issue(user.Username)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{AccessToken: tok, TokenType: TokenTypeBearer, User: user}, nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
