package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"support-chat-backend/internal/database"
	internaljwt "support-chat-backend/internal/jwt"
	"support-chat-backend/internal/model"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

var createTokenWithRefresh = internaljwt.CreateTokenWithRefresh

// SetTokenIssuer swaps the token issuing function, used by tests to avoid a
// live Redis connection.
func SetTokenIssuer(issuer func(internaljwt.Operator, internaljwt.Role, int64) (internaljwt.TokenResponse, error)) {
	if issuer == nil {
		createTokenWithRefresh = internaljwt.CreateTokenWithRefresh
		return
	}
	createTokenWithRefresh = issuer
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo: repo,
		now:  now,
	}
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	username := strings.TrimSpace(params.Username)
	password := strings.TrimSpace(params.Password)

	if email == "" || username == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	if _, err := s.repo.FindOperatorByEmail(ctx, email); err == nil {
		return AuthResult{}, newError(ErrorCodeConflict, "operator already exists", nil)
	} else if !errors.Is(err, ErrNotFound) {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to check operator", err)
	}

	newOperator, err := internaljwt.NewOperator(internaljwt.RegisterOperator{
		Email:    email,
		Username: username,
		Password: password,
	})
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to prepare operator", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	newOperator.Id = uuid.NewString()

	operator := model.OperatorItem{
		OperatorID:   newOperator.Id,
		Username:     username,
		Email:        email,
		Role:         "operator",
		PasswordHash: newOperator.PasswordHash,
		CreatedAt:    now,
	}

	if err := s.repo.CreateOperator(ctx, operator); err != nil {
		if errors.Is(err, ErrExists) {
			return AuthResult{}, newError(ErrorCodeConflict, "operator already exists", err)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to save operator", err)
	}

	tokens, err := createTokenWithRefresh(newOperator, internaljwt.RoleAdmin, 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	return AuthResult{
		Operator: operator,
		Tokens:   tokens,
	}, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)

	if email == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	operator, err := s.repo.FindOperatorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", nil)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to fetch operator", err)
	}

	if !internaljwt.ValidatePassword(operator.PasswordHash, password) {
		return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", nil)
	}

	jwtOperator := internaljwt.Operator{
		Id:           operator.OperatorID,
		Email:        operator.Email,
		Username:     operator.Username,
		PasswordHash: operator.PasswordHash,
	}

	tokens, err := createTokenWithRefresh(jwtOperator, internaljwt.RoleAdmin, 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	return AuthResult{
		Operator: operator,
		Tokens:   tokens,
	}, nil
}

func (s *Service) Refresh(refreshToken string) (internaljwt.TokenResponse, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return internaljwt.TokenResponse{}, newError(ErrorCodeValidation, "refresh token is required", nil)
	}

	accessToken, err := internaljwt.RefreshToken(token, internaljwt.RoleAdmin)
	if err != nil {
		return internaljwt.TokenResponse{}, newError(ErrorCodeUnauthorized, "invalid refresh token", err)
	}

	return internaljwt.TokenResponse{AccessToken: accessToken}, nil
}

func (s *Service) Me(ctx context.Context, identity Identity) (ProfileResult, error) {
	operatorID := strings.TrimSpace(identity.OperatorID)
	if operatorID == "" {
		return ProfileResult{}, newError(ErrorCodeUnauthorized, "invalid operator identity", nil)
	}

	operator, err := s.repo.GetOperator(ctx, operatorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProfileResult{}, newError(ErrorCodeNotFound, "operator not found", err)
		}
		return ProfileResult{}, newError(ErrorCodeInternal, "failed to fetch operator", err)
	}

	return ProfileResult{Operator: operator}, nil
}

func (s *Service) IdentityFromAuthorizationHeader(header string) (Identity, error) {
	authHeader := strings.TrimSpace(header)
	if authHeader == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "missing authorization header", nil)
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return Identity{}, newError(ErrorCodeUnauthorized, "invalid authorization header format", nil)
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return s.identityFromToken(token)
}

func (s *Service) identityFromToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "empty token", nil)
	}

	claims, err := internaljwt.ParseToken(token, internaljwt.RoleAdmin)
	if err != nil {
		return Identity{}, newError(ErrorCodeUnauthorized, "invalid token", err)
	}

	operator := internaljwt.OperatorFromClaims(claims)
	if operator.Id == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "token missing identifiers", nil)
	}

	return Identity{
		OperatorID: operator.Id,
		Email:      operator.Email,
		Username:   operator.Username,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
