package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bidding-gateway/internal/biddingerrors"
	model "bidding-gateway/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "bidding-gateway"

// Verifier turns a bearer credential into an identity. Every failure is ErrInvalidToken.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (model.Identity, error)
}

// Claims carried by tokens issued to bidders
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies and issues HS256 tokens
type JWTVerifier struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// NewJWTVerifier creates a verifier for the given shared secret
func NewJWTVerifier(secretKey string, tokenDuration time.Duration) *JWTVerifier {
	return &JWTVerifier{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Issue signs a token for the given user
func (v *JWTVerifier) Issue(userID, username, role string) (string, error) {
	now := v.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}

// VerifyToken validates the signature and expiry and returns the bidder identity
func (v *JWTVerifier) VerifyToken(ctx context.Context, tokenString string) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, fmt.Errorf("auth: %w: %w", biddingerrors.ErrInvalidToken, err)
	}
	if tokenString == "" {
		return model.Identity{}, fmt.Errorf("auth: empty token: %w", biddingerrors.ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secretKey, nil
		},
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("auth: %w: %v", biddingerrors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return model.Identity{}, fmt.Errorf("auth: invalid claims: %w", biddingerrors.ErrInvalidToken)
	}

	return model.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// TokenFromRequest extracts a token from the "token" query parameter, falling back to
// an "Authorization: Bearer" header. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	const bearerPrefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return ""
}
