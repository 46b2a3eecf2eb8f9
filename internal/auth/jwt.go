package auth

import (
	"errors"
	"time"

	"km-backend/internal/config"
	"km-backend/internal/timeutil"

	"github.com/golang-jwt/jwt/v5"
)

// Roles issued by the admin console
const (
	RoleAdmin   = "ADMIN"
	RoleCurator = "CURATOR"
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager validates the access tokens of console users.
// Tokens are signed with the secret shared with the console backend.
type JWTManager struct {
	cfg *config.Config
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{cfg: cfg}
}

// GenerateToken creates a token for a user, used by service accounts and tests
func (j *JWTManager) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	now := timeutil.Now()

	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.cfg.JWT.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.JWT.Secret))
}

// ValidateToken verifies a JWT token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(j.cfg.JWT.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserID == "" || (claims.Role != RoleAdmin && claims.Role != RoleCurator) {
		return nil, errors.New("token has no console role")
	}

	return claims, nil
}
