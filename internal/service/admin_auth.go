package service

import (
	"context"
	"fmt"
	"time"

	"github.com/billminder/billminder-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var adminAuthTracer = otel.Tracer("service/adminauth")

// AdminClaims represents the custom claims in operator access tokens.
type AdminClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthService authenticates the operator against the configured
// credentials and issues short-lived HS256 bearer tokens for the
// admin surface.
type AdminAuthService struct {
	adminEmail   string
	passwordHash []byte // bcrypt
	jwtSecret    []byte
	accessTTL    time.Duration
	logger       *zap.Logger
}

// NewAdminAuthService creates a new admin auth service.
func NewAdminAuthService(adminEmail, passwordHash, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AdminAuthService {
	return &AdminAuthService{
		adminEmail:   adminEmail,
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    accessTTL,
		logger:       logger,
	}
}

// Login verifies operator credentials and returns a bearer token.
func (s *AdminAuthService) Login(ctx context.Context, req *domain.AdminLoginRequest) (*domain.AdminLoginResponse, error) {
	_, span := adminAuthTracer.Start(ctx, "AdminAuthService.Login")
	defer span.End()

	if s.adminEmail == "" || len(s.passwordHash) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "admin access is not configured"}
	}
	if req.Email != s.adminEmail {
		s.logger.Warn("admin login rejected, unknown email", zap.String("email", req.Email))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		s.logger.Warn("admin login rejected, bad password", zap.String("email", req.Email))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	now := time.Now()
	expiresAt := now.Add(s.accessTTL)
	claims := AdminClaims{
		Sub:  s.adminEmail,
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "billminder-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin logged in", zap.String("email", req.Email))
	return &domain.AdminLoginResponse{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken verifies an admin bearer token. Used by middleware.
func (s *AdminAuthService) ValidateToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Role != "admin" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token role"}
	}
	return claims, nil
}
