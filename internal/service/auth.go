package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avdeev/digital-market/internal/events"
	"github.com/avdeev/digital-market/internal/hash"
	"github.com/avdeev/digital-market/internal/logging"
	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/tokens"
	"github.com/avdeev/digital-market/internal/util"
)

type AuthService struct {
	Repo      *repo.GormRepo
	Producer  *events.Producer
	JWTSecret []byte
	TokenTTL  time.Duration
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, email, password, name, role string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	fields := map[string]string{}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if ok, errs := hash.ValidateStrength(password); !ok {
		fields["password"] = strings.Join(errs, "; ")
	}
	if role == "" {
		role = models.RoleBuyer
	}
	// Admin accounts are seeded or promoted by an existing admin, never
	// self-registered.
	if role != models.RoleBuyer && role != models.RoleSeller {
		fields["role"] = "role must be buyer or seller"
	}
	if len(fields) > 0 {
		return nil, Invalid(fields)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &pwHash,
		Role:         role,
	}
	if role == models.RoleSeller {
		user.SellerSlug = util.Slugify(name)
	}

	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			l.Warn("register_error", "status", 400, "reason", "email already registered")
			return nil, Invalid(map[string]string{"email": "email already registered"})
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, err
	}

	_ = s.Producer.PublishEvent(ctx, events.TopicUserEvents, user.ID, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"role":   user.Role,
	})

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if repo.IsNotFound(err) {
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	// OAuth-only accounts have no password hash and cannot log in here.
	if user.PasswordHash == nil || !hash.CheckPassword(*user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "bad password")
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Me re-verifies the bearer token and returns the current account. This is
// the only server-side check the sliding client session ever makes.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

type SellerFlagsInput struct {
	VerifiedSeller *bool `json:"verified_seller"`
	PremiumSeller  *bool `json:"premium_seller"`
}

// SetSellerFlags is the admin path that turns a seller account into a
// verified (or premium) one; publishing is gated on the verified flag.
func (s *AuthService) SetSellerFlags(ctx context.Context, userID string, in SellerFlagsInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.seller_flags", "userID", userID)

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if user.Role != models.RoleSeller {
		return nil, Invalid(map[string]string{"role": "only seller accounts carry seller flags"})
	}

	if in.VerifiedSeller != nil {
		user.VerifiedSeller = *in.VerifiedSeller
	}
	if in.PremiumSeller != nil {
		user.PremiumSeller = *in.PremiumSeller
	}

	if err := s.Repo.UpdateUser(ctx, user); err != nil {
		l.Error("seller_flags_error", "status", 500, "error", err)
		return nil, err
	}

	_ = s.Producer.PublishEvent(ctx, events.TopicUserEvents, user.ID, map[string]any{
		"type":     "seller_flags_updated",
		"userID":   user.ID,
		"verified": user.VerifiedSeller,
		"premium":  user.PremiumSeller,
	})

	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, exp, err := tokens.Issue(user.ID, user.Email, user.Role, s.JWTSecret, s.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: exp, User: user}, nil
}
