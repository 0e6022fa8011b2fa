package identity

import (
	"context"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// CustomClaims contains the busify specific claims from the token
type CustomClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

type tokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (interface{}, error)
}

type JWKSProvider struct {
	Validator tokenValidator
}

func NewJWKSProvider(issuer string, audience string) (*JWKSProvider, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &JWKSProvider{Validator: jwtValidator}, nil
}

func (p *JWKSProvider) Verify(ctx context.Context, token string) (Identity, error) {
	claimsI, err := p.Validator.ValidateToken(ctx, token)
	if err != nil {
		return Identity{}, unauthenticated("invalid token", err)
	}

	claims, ok := claimsI.(*validator.ValidatedClaims)
	if !ok {
		return Identity{}, unauthenticated("unexpected claims", nil)
	}

	identity := Identity{
		UserID: claims.RegisteredClaims.Subject,
		Role:   RolePassenger,
	}
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok {
		identity.Email = custom.Email
		identity.Role = ParseRole(custom.Role)
	}

	return identity, nil
}
