package jwt

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names an asymmetric JWS algorithm supported by the codec.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodRS256 signs with RSASSA-PKCS1-v1_5 using SHA-256.
	MethodRS256 SigningMethod = "rs256"
)

const minRSABits = 2048

// KeySource records where a key set came from. It is surfaced in the
// security report.
type KeySource string

const (
	// KeySourceGenerated marks keys created at process start.
	KeySourceGenerated KeySource = "generated"
	// KeySourceConfigured marks keys loaded from durable configuration.
	KeySourceConfigured KeySource = "configured"
)

// KeyProvider supplies key material to a [Codec] for its lifetime.
//
// SigningKey returns the key used for new tokens and the kid written into
// their header (empty when the provider does not use key ids).
// VerificationKey resolves the public key for a token's kid.
type KeyProvider interface {
	Method() SigningMethod
	SigningKey() (kid string, key crypto.Signer)
	VerificationKey(kid string) (crypto.PublicKey, bool)
}

// KeySet is the in-memory [KeyProvider]. It is immutable after construction.
type KeySet struct {
	method SigningMethod
	source KeySource
	kid    string
	signer crypto.Signer
	verify map[string]crypto.PublicKey
}

// GenerateKeySet creates a fresh key pair for method. Tokens signed by a
// generated set cannot be verified by other processes, so it only suits
// single-instance deployments and tests.
func GenerateKeySet(method SigningMethod, kid string) (*KeySet, error) {
	var signer crypto.Signer
	switch method {
	case MethodEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		signer = priv
	case MethodRS256:
		priv, err := rsa.GenerateKey(rand.Reader, minRSABits)
		if err != nil {
			return nil, err
		}
		signer = priv
	default:
		return nil, errors.New("unsupported signing method")
	}

	return newKeySet(method, KeySourceGenerated, strings.TrimSpace(kid), signer, nil)
}

// LoadKeySet builds a key set from PEM (or raw Ed25519) key material.
//
// privateKey may be empty for verify-only deployments. verifyKeys maps kid to
// an additional public key accepted during verification, which allows an old
// key to keep validating while a new one signs.
func LoadKeySet(method SigningMethod, kid string, privateKey []byte, verifyKeys map[string][]byte) (*KeySet, error) {
	kid = strings.TrimSpace(kid)

	var signer crypto.Signer
	if len(privateKey) > 0 {
		parsed, err := parsePrivateKey(method, privateKey)
		if err != nil {
			return nil, err
		}
		signer = parsed
	}

	extra := make(map[string]crypto.PublicKey, len(verifyKeys))
	for id, raw := range verifyKeys {
		if strings.TrimSpace(id) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		pub, err := parsePublicKey(method, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid verify key for kid %q: %w", id, err)
		}
		extra[id] = pub
	}

	if signer == nil && len(extra) == 0 {
		return nil, errors.New("key set requires a private key or verify keys")
	}

	return newKeySet(method, KeySourceConfigured, kid, signer, extra)
}

func newKeySet(method SigningMethod, source KeySource, kid string, signer crypto.Signer, extra map[string]crypto.PublicKey) (*KeySet, error) {
	ks := &KeySet{
		method: method,
		source: source,
		kid:    kid,
		signer: signer,
		verify: make(map[string]crypto.PublicKey, len(extra)+1),
	}
	for id, pub := range extra {
		ks.verify[id] = pub
	}
	if signer != nil {
		if existing, ok := ks.verify[kid]; ok && !publicKeysEqual(existing, signer.Public()) {
			return nil, errors.New("verify key for signing kid does not match private key")
		}
		ks.verify[kid] = signer.Public()
	}

	return ks, nil
}

// Method implements [KeyProvider].
func (k *KeySet) Method() SigningMethod { return k.method }

// SigningKey implements [KeyProvider]. key is nil for verify-only sets.
func (k *KeySet) SigningKey() (string, crypto.Signer) { return k.kid, k.signer }

// VerificationKey implements [KeyProvider].
func (k *KeySet) VerificationKey(kid string) (crypto.PublicKey, bool) {
	pub, ok := k.verify[kid]
	return pub, ok
}

// Source reports whether the keys were generated or configured.
func (k *KeySet) Source() KeySource { return k.source }

func jwsMethod(m SigningMethod) (jwt.SigningMethod, error) {
	switch m {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA, nil
	case MethodRS256:
		return jwt.SigningMethodRS256, nil
	default:
		return nil, errors.New("unsupported signing method")
	}
}

func parsePrivateKey(method SigningMethod, key []byte) (crypto.Signer, error) {
	switch method {
	case MethodEd25519:
		return parseEdPrivateKey(key)
	case MethodRS256:
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid rsa private key")
		}
		if priv.N.BitLen() < minRSABits {
			return nil, fmt.Errorf("rsa private key must be at least %d bits", minRSABits)
		}
		return priv, nil
	default:
		return nil, errors.New("unsupported signing method")
	}
}

func parsePublicKey(method SigningMethod, key []byte) (crypto.PublicKey, error) {
	switch method {
	case MethodEd25519:
		return parseEdPublicKey(key)
	case MethodRS256:
		pub, err := jwt.ParseRSAPublicKeyFromPEM(key)
		if err != nil {
			return nil, errors.New("invalid rsa public key")
		}
		if pub.N.BitLen() < minRSABits {
			return nil, fmt.Errorf("rsa public key must be at least %d bits", minRSABits)
		}
		return pub, nil
	default:
		return nil, errors.New("unsupported signing method")
	}
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}
	ea, ok := a.(equaler)
	return ok && ea.Equal(b)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
