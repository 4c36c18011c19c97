package jwttoken

import (
	"marketroles/pkg/platform/middleware/auth"
	platformstrings "marketroles/pkg/platform/strings"
)

// Adapter exposes the service through the auth middleware contract.
type Adapter struct {
	svc *JWTService
}

func NewAdapter(svc *JWTService) *Adapter {
	return &Adapter{svc: svc}
}

func (a *Adapter) ValidateToken(tokenString string) (*auth.ActorClaims, error) {
	claims, err := a.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.ActorClaims{ActorGLN: claims.ActorGLN, Roles: platformstrings.DedupeAndTrimUpper(claims.MarketRoles)}, nil
}
