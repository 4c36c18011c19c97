package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
)

// Claims represents the JWT claims carried by market actor tokens.
type Claims struct {
	ActorGLN    string   `json:"actor_gln"`
	MarketRoles []string `json:"market_roles"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 tokens for market actors.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateActorToken mints a token for a market actor. Used by the dev CLI and tests.
func (s *JWTService) GenerateActorToken(actorGLN string, roles []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorGLN:    actorGLN,
		MarketRoles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorGLN,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
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
	if _, err := domain.ParseGlnNumber(claims.ActorGLN); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token actor is not a valid GLN")
	}
	return claims, nil
}
