// Package jwttoken issues and validates the access tokens used by the
// attendance API.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

const DefaultAccessTokenTTL = 12 * time.Hour

// Claims represents the JWT claims for our access tokens.
type Claims struct {
	EmployeeID string `json:"employee_id"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewJWTService(signingKey string, issuer string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// GenerateAccessToken signs a token for the employee. The returned time is
// the token expiry, surfaced to clients in the login response.
func (s *JWTService) GenerateAccessToken(employeeID id.EmployeeID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		EmployeeID: employeeID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   employeeID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signedToken, expiresAt, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ExtractEmployeeID validates the token and parses the employee ID claim.
func (s *JWTService) ExtractEmployeeID(tokenString string) (id.EmployeeID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return id.EmployeeID{}, err
	}
	employeeID, err := id.ParseEmployeeID(claims.EmployeeID)
	if err != nil {
		return id.EmployeeID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return employeeID, nil
}
