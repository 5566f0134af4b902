package httpapi

import (
	"registra/internal/jwttoken"
	"registra/internal/platform/middleware"
)

// jwtValidator adapts the JWT service to the middleware contract.
type jwtValidator struct {
	svc *jwttoken.JWTService
}

func NewTokenValidator(svc *jwttoken.JWTService) middleware.TokenValidator {
	return jwtValidator{svc: svc}
}

func (v jwtValidator) ValidateToken(token string) (*middleware.TokenClaims, error) {
	claims, err := v.svc.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{Subject: claims.Subject}, nil
}
