package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSignatureInvalid is returned by [Codec.Verify] for every rejected token:
// bad signature, unexpected algorithm or kid, wrong issuer or audience,
// expiry, or missing subject and identifier claims.
var ErrSignatureInvalid = errors.New("token signature or claims invalid")

// Config holds claim and validation settings for a [Codec].
type Config struct {
	Issuer       string
	Audience     string
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration

	// Now overrides the clock used for issuance and validation.
	Now func() time.Time
}

// Codec issues and verifies short-lived access tokens. It owns no key
// material; keys are borrowed from the [KeyProvider] it was built with.
type Codec struct {
	config Config
	keys   KeyProvider
	method jwt.SigningMethod
}

// Issued is the result of [Codec.Issue]. ID is the raw jti; callers persist
// only its hash.
type Issued struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewCodec validates cfg and binds it to keys.
func NewCodec(cfg Config, keys KeyProvider) (*Codec, error) {
	if keys == nil {
		return nil, errors.New("key provider required")
	}
	method, err := jwsMethod(keys.Method())
	if err != nil {
		return nil, err
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{config: cfg, keys: keys, method: method}, nil
}

// Algorithm returns the JWS alg header value tokens are signed with.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs a token for subject that expires after ttl. A fresh random
// identifier is embedded as the jti claim and returned alongside the token.
func (c *Codec) Issue(subject string, ttl time.Duration) (Issued, error) {
	if strings.TrimSpace(subject) == "" {
		return Issued{}, errors.New("subject required")
	}
	if ttl <= 0 {
		return Issued{}, errors.New("invalid TTL")
	}

	kid, signer := c.keys.SigningKey()
	if signer == nil {
		return Issued{}, errors.New("key provider has no signing key")
	}

	now := c.config.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.config.Issuer,
		Audience:  jwt.ClaimStrings{c.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(c.method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}

	signed, err := token.SignedString(signer)
	if err != nil {
		return Issued{}, fmt.Errorf("sign access token: %w", err)
	}

	return Issued{
		Token:     signed,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry. Any
// failure is reported as [ErrSignatureInvalid] wrapping the parser's reason.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithAudience(c.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		key, ok := c.keys.VerificationKey(kid)
		if !ok {
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			return nil, errors.New("unknown kid")
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrSignatureInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrSignatureInvalid)
	}
	if claims.IssuedAt != nil && c.config.MaxFutureIAT > 0 {
		maxAllowed := c.config.Now().Add(c.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: token iat too far in the future", ErrSignatureInvalid)
		}
	}

	out := &Claims{
		Subject:   claims.Subject,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
