package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/domain/user"
	"github.com/ficore/wallet-api/internal/pkg/jwt"
	"github.com/ficore/wallet-api/internal/pkg/password"
)

// Service handles authentication business logic
type Service struct {
	userRepo   user.Repository
	jwtService *jwt.Service
	tokens     *RefreshTokenRepository
}

// NewService creates auth service
func NewService(userRepo user.Repository, jwtService *jwt.Service, tokens *RefreshTokenRepository) *Service {
	return &Service{userRepo: userRepo, jwtService: jwtService, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates new user account
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)

	existing, _ := s.userRepo.GetByEmail(ctx, req.Email)
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         user.RoleUser,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Msg("user registered")
	return s.issueTokens(ctx, u, "", "")
}

// Login authenticates by email and password
func (s *Service) Login(ctx context.Context, req *LoginRequest, userAgent, ip string) (*AuthResponse, error) {
	u, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if u.IsBanned {
		return nil, ErrUserBanned
	}
	return s.issueTokens(ctx, u, userAgent, ip)
}

// Refresh rotates a refresh token. A token that was already used or revoked
// is treated as stolen: every session for that user is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (*AuthResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	rec, err := s.tokens.GetByTokenHash(ctx, jwt.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if rec.RevokedAt.Valid || rec.UsedAt.Valid {
		_ = s.tokens.RevokeAllByUserID(ctx, rec.UserID)
		log.Warn().Str("user_id", rec.UserID.String()).Msg("refresh token reuse detected, sessions revoked")
		return nil, ErrInvalidRefreshToken
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if u.IsBanned {
		return nil, ErrUserBanned
	}

	if err := s.tokens.MarkUsed(ctx, rec.TokenHash); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, u, userAgent, ip)
}

// Logout revokes the presented refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeByTokenHash(ctx, jwt.HashRefreshToken(refreshToken))
}

// Me returns the current user's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// SubmitKYC stores the identity numbers needed for wallet provisioning.
func (s *Service) SubmitKYC(ctx context.Context, userID uuid.UUID, req *KYCRequest) (*user.User, error) {
	if err := s.userRepo.UpdateKYC(ctx, userID, req.BVN, req.NIN); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID.String()).Msg("kyc identity captured")
	return s.userRepo.GetByID(ctx, userID)
}

func (s *Service) issueTokens(ctx context.Context, u *user.User, userAgent, ip string) (*AuthResponse, error) {
	access, err := s.jwtService.GenerateAccessToken(u.ID, string(u.Role), u.IsBanned)
	if err != nil {
		return nil, err
	}
	refresh, jti, expiresAt, err := s.jwtService.GenerateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Create(ctx, &RefreshTokenRecord{
		ID:        uuid.New(),
		UserID:    u.ID,
		TokenHash: jwt.HashRefreshToken(refresh),
		JTI:       jti,
		ExpiresAt: expiresAt,
		UserAgent: userAgent,
		IP:        ip,
	}); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User: UserResponseFromEntity(u),
		Tokens: TokensResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(s.jwtService.GetAccessTTL().Seconds()),
		},
	}, nil
}
