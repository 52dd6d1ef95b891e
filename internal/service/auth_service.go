package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/validation"
	"scholarhub/internal/workflow"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var ErrGoogleNotConfigured = errors.New("google sign-in is not configured")

// GoogleIdentity is what a verified Google ID token says about its holder.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IDTokenVerifier checks a Google ID token.
type IDTokenVerifier interface {
	Verify(idToken string) (*GoogleIdentity, error)
}

// GoogleVerifier validates ID tokens against Google's published keys.
type GoogleVerifier struct {
	ClientID string
}

func (g GoogleVerifier) Verify(idToken string) (*GoogleIdentity, error) {
	if g.ClientID == "" {
		return nil, ErrGoogleNotConfigured
	}
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.ClientID}); err != nil {
		return nil, err
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, err
	}
	return &GoogleIdentity{
		Subject: claimSet.Sub,
		Email:   claimSet.Email,
		Name:    claimSet.Name,
	}, nil
}

type AuthService struct {
	users    repository.UserRepository
	rdb      *redis.Client
	google   IDTokenVerifier
	secret   string
	now      func() time.Time
	hashCost int
}

// SignupInput is the registration form.
type SignupInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url,max=512"`
}

// LoginInput is the email/password sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed token and the user it was issued to.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func NewAuthService(users repository.UserRepository, rdb *redis.Client, google IDTokenVerifier, jwtSecret string) *AuthService {
	return &AuthService{
		users:    users,
		rdb:      rdb,
		google:   google,
		secret:   jwtSecret,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// Signup registers a student account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Password != "" {
		if err := validation.ValidatePassword(in.Password); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("An account with this email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: string(hashed),
		PhotoURL: in.PhotoURL,
		Role:     workflow.RoleStudent,
		Theme:    models.ThemeLight,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks an email and password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password == "" {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); cmpErr != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

// GoogleLogin signs in with a Google ID token. An unknown Google account is
// linked to an existing user with the same email or registered as a student.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, models.NewValidationError("idToken is required")
	}
	if s.google == nil {
		return nil, models.NewUnauthorizedError("Google sign-in is not available")
	}
	identity, err := s.google.Verify(idToken)
	if err != nil {
		return nil, &models.AppError{Code: models.CodeUnauthorized, Message: "Invalid Google ID token", Err: err}
	}

	user, err := s.users.GetByGoogleSub(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.issue(user)
	}

	email := validation.NormalizeEmail(identity.Email)
	user, err = s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	sub := identity.Subject
	if user != nil {
		user.GoogleSub = &sub
		if user.PhotoURL == "" {
			user.PhotoURL = identity.Picture
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return s.issue(user)
	}

	user = &models.User{
		Name:      firstNonEmpty(identity.Name, email),
		Email:     email,
		PhotoURL:  identity.Picture,
		Role:      workflow.RoleStudent,
		Theme:     models.ThemeLight,
		GoogleSub: &sub,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Logout revokes the token id until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil || claims.ID == "" {
		return models.NewUnauthorizedError("Not signed in")
	}
	if s.rdb == nil {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, middleware.BlacklistKey(claims.ID), 1, ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, claims, err := middleware.IssueToken(s.secret, user.ID, string(user.Role), s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}
