package auth

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/config"
	"github.com/Abraxas-365/chatmemory/pkg/iam/scopes"
	"github.com/Abraxas-365/chatmemory/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// JWTService implements TokenService with HS256-signed JWTs.
type JWTService struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
	audience       []string
	now            func() time.Time
}

func NewJWTServiceFromConfig(cfg *config.JWTConfig) *JWTService {
	return &JWTService{
		secretKey:      []byte(cfg.SecretKey),
		accessTokenTTL: cfg.AccessTokenTTL,
		issuer:         cfg.Issuer,
		audience:       cfg.Audience,
		now:            time.Now,
	}
}

// JWTClaims are the custom claims carried by an access token.
type JWTClaims struct {
	OwnerID kernel.OwnerID `json:"owner_id"`
	Email   string         `json:"email,omitempty"`
	Name    string         `json:"name,omitempty"`
	Scopes  []string       `json:"scopes"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a token for ownerID. Recognized claims are
// "email", "name" and "scopes"; unknown scopes are rejected.
func (j *JWTService) GenerateAccessToken(ownerID kernel.OwnerID, claims map[string]any) (string, error) {
	if ownerID.IsEmpty() {
		return "", ErrTokenGenerationFailed().WithDetail("error", "owner id is required")
	}
	now := j.now()

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	granted, _ := claims["scopes"].([]string)

	// Default to empty scopes if not provided
	if granted == nil {
		granted = []string{}
	}
	for _, s := range granted {
		if !scopes.ValidateScope(s) {
			return "", ErrInvalidScope().WithDetail("scope", s)
		}
	}

	jwtClaims := JWTClaims{
		OwnerID: ownerID,
		Email:   email,
		Name:    name,
		Scopes:  granted,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   ownerID.String(),
			Audience:  j.audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}

	return tokenString, nil
}

// ValidateAccessToken checks signature, issuer, audience and expiry and
// returns the token's claims.
func (j *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if len(j.audience) > 0 {
		opts = append(opts, jwt.WithAudience(j.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, opts...)

	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}

	if !token.Valid {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	jwtClaims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}

	ownerID := jwtClaims.OwnerID
	if ownerID.IsEmpty() {
		ownerID = kernel.OwnerID(jwtClaims.Subject)
	}
	if ownerID.IsEmpty() {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token has no subject")
	}

	return &TokenClaims{
		OwnerID:   ownerID,
		Email:     jwtClaims.Email,
		Name:      jwtClaims.Name,
		Scopes:    jwtClaims.Scopes,
		IssuedAt:  jwtClaims.IssuedAt.Time,
		ExpiresAt: jwtClaims.ExpiresAt.Time,
	}, nil
}
