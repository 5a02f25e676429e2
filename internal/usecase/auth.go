package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"review-responder/internal/domain/entity"
	"review-responder/internal/domain/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	minPasswordLength = 8
)

type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	Secret            []byte
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	TrialDuration     time.Duration
	DefaultUsageLimit int
}

// AuthService issues and verifies bearer credentials and manages accounts.
type AuthService struct {
	users  repository.UserStore
	tokens repository.TokenStore
	cfg    AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users repository.UserStore, tokens repository.TokenStore, cfg AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password, businessName string) (*entity.User, *entity.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, entity.NewValidationError("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, nil, entity.NewValidationError("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, entity.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	now := s.now().UTC()
	user := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		BusinessName: strings.TrimSpace(businessName),
		UsageLimit:   s.cfg.DefaultUsageLimit,
		TrialEndDate: now.Add(s.cfg.TrialDuration),
		CreatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, entity.ErrConflict) {
			return nil, nil, entity.NewConflictError("an account with this email already exists")
		}
		return nil, nil, entity.NewInternalError(fmt.Errorf("create user: %w", err))
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*entity.TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, entity.ErrResourceNotFound) {
			return nil, entity.NewInvalidCredentialsError()
		}
		return nil, entity.NewInternalError(fmt.Errorf("load user: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, entity.NewInvalidCredentialsError()
	}
	return s.issuePair(ctx, user.ID)
}

// Refresh rotates a refresh token. Only the most recently issued refresh
// token of a user is accepted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*entity.TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	current, err := s.tokens.GetRefreshToken(ctx, claims.UserID)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("load refresh token: %w", err))
	}
	if current == "" || current != claims.ID {
		return nil, entity.NewAuthError(entity.AuthInvalid, errors.New("refresh token revoked or rotated"))
	}
	return s.issuePair(ctx, claims.UserID)
}

// Logout revokes the access token until its natural expiry and drops the
// refresh token.
func (s *AuthService) Logout(ctx context.Context, id entity.Identity) error {
	if ttl := id.ExpiresAt.Sub(s.now()); ttl > 0 {
		if err := s.tokens.Blacklist(ctx, id.TokenID, ttl); err != nil {
			return entity.NewInternalError(fmt.Errorf("blacklist token: %w", err))
		}
	}
	if err := s.tokens.DeleteRefreshToken(ctx, id.UserID); err != nil {
		return entity.NewInternalError(fmt.Errorf("delete refresh token: %w", err))
	}
	return nil
}

// Verify resolves the caller behind an access token. A blacklisted token is
// invalid regardless of its expiry.
func (s *AuthService) Verify(ctx context.Context, token string) (*entity.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, entity.NewAuthError(entity.AuthMissing, nil)
	}
	claims, err := s.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("check blacklist: %w", err))
	}
	if revoked {
		return nil, entity.NewAuthError(entity.AuthInvalid, errors.New("token revoked"))
	}

	return &entity.Identity{
		UserID:    claims.UserID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *AuthService) parse(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, entity.NewAuthError(entity.AuthExpired, err)
		}
		return nil, entity.NewAuthError(entity.AuthInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, entity.NewAuthError(entity.AuthInvalid, errors.New("malformed claims"))
	}
	if claims.TokenType != wantType {
		return nil, entity.NewAuthError(entity.AuthInvalid, fmt.Errorf("expected %s token", wantType))
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, userID string) (*entity.TokenPair, error) {
	access, _, err := s.sign(userID, tokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, entity.NewInternalError(err)
	}
	refresh, refreshID, err := s.sign(userID, tokenTypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, entity.NewInternalError(err)
	}
	if err := s.tokens.SaveRefreshToken(ctx, userID, refreshID, s.cfg.RefreshTTL); err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("store refresh token: %w", err))
	}
	return &entity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

func (s *AuthService) sign(userID, tokenType string, ttl time.Duration) (string, string, error) {
	now := s.now()
	id := uuid.NewString()
	claims := &Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, id, nil
}
