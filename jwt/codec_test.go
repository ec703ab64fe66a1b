package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestCodec(t *testing.T, keys KeyProvider, mutate func(*Config)) *Codec {
	t.Helper()
	cfg := Config{Issuer: "https://auth.local", Audience: "https://api.local"}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCodec(cfg, keys)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func signRaw(t *testing.T, method gjwt.SigningMethod, key interface{}, kid string, claims gjwt.RegisteredClaims) string {
	t.Helper()
	tok := gjwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	for _, method := range []SigningMethod{MethodEd25519, MethodRS256} {
		t.Run(string(method), func(t *testing.T) {
			keys, err := GenerateKeySet(method, "boot")
			if err != nil {
				t.Fatalf("generate keys: %v", err)
			}
			c := newTestCodec(t, keys, nil)

			issued, err := c.Issue("user-1", time.Minute)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			if issued.Token == "" || issued.ID == "" {
				t.Fatalf("expected token and id, got %+v", issued)
			}

			claims, err := c.Verify(issued.Token)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if claims.Subject != "user-1" || claims.ID != issued.ID {
				t.Fatalf("unexpected claims: %+v", claims)
			}
			if !claims.ExpiresAt.Equal(issued.ExpiresAt) {
				t.Fatalf("expiry mismatch: %v vs %v", claims.ExpiresAt, issued.ExpiresAt)
			}
		})
	}
}

func TestIssueProducesDistinctIdentifiers(t *testing.T) {
	keys, _ := GenerateKeySet(MethodEd25519, "")
	c := newTestCodec(t, keys, nil)

	a, err := c.Issue("u", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := c.Issue("u", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("expected unique jti per token")
	}
}

func TestVerifyRejectsSymmetricAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	keys, err := LoadKeySet(MethodEd25519, "", nil, map[string][]byte{"k1": pub})
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	c := newTestCodec(t, keys, nil)

	token := signRaw(t, gjwt.SigningMethodHS256, []byte("secret-secret-secret-secret"), "k1", gjwt.RegisteredClaims{
		Subject:   "u",
		ID:        "j",
		Issuer:    "https://auth.local",
		Audience:  gjwt.ClaimStrings{"https://api.local"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	})

	if _, err := c.Verify(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	keys, err := LoadKeySet(MethodEd25519, "", priv, nil)
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	c := newTestCodec(t, keys, func(cfg *Config) { cfg.Leeway = 30 * time.Second })

	base := func() gjwt.RegisteredClaims {
		return gjwt.RegisteredClaims{
			Subject:   "u",
			ID:        "jti",
			Issuer:    "https://auth.local",
			Audience:  gjwt.ClaimStrings{"https://api.local"},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		}
	}

	wrongIssuer := base()
	wrongIssuer.Issuer = "other"
	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", wrongIssuer)); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := base()
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}
	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", wrongAudience)); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	withinLeeway := base()
	withinLeeway.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(-15 * time.Second))
	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", withinLeeway)); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := base()
	expired.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute))
	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", expired)); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	noJTI := base()
	noJTI.ID = ""
	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv, "", noJTI)); err == nil {
		t.Fatal("expected token without jti to fail")
	}
}

func TestVerifyHonoursInjectedClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	keys, _ := GenerateKeySet(MethodEd25519, "")
	c := newTestCodec(t, keys, func(cfg *Config) { cfg.Now = func() time.Time { return now } })

	issued, err := c.Issue("u", time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(issued.Token); err != nil {
		t.Fatalf("expected fresh token to verify: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Verify(issued.Token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	keys, err := LoadKeySet(MethodEd25519, "k1", priv1, map[string][]byte{"k1": pub1})
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	c := newTestCodec(t, keys, nil)

	claims := gjwt.RegisteredClaims{
		Subject:   "u",
		ID:        "j",
		Issuer:    "https://auth.local",
		Audience:  gjwt.ClaimStrings{"https://api.local"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}

	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv1, "k2", claims)); err == nil {
		t.Fatal("expected unknown kid failure")
	}
	if _, err := c.Verify(signRaw(t, gjwt.SigningMethodEdDSA, priv1, "", claims)); err == nil {
		t.Fatal("expected missing kid failure")
	}

	good := signRaw(t, gjwt.SigningMethodEdDSA, priv1, "k1", claims)
	if _, err := c.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	other, _ := LoadKeySet(MethodEd25519, "", nil, map[string][]byte{"k1": pub2})
	if _, err := newTestCodec(t, other, nil).Verify(good); err == nil {
		t.Fatal("expected verify failure with mismatched key set")
	}
}

func TestVerifyAcceptsRetiredKeyDuringRollover(t *testing.T) {
	oldPub, oldPriv := newEdKeys(t)
	_, newPriv := newEdKeys(t)

	oldKeys, _ := LoadKeySet(MethodEd25519, "old", oldPriv, nil)
	oldToken, err := newTestCodec(t, oldKeys, nil).Issue("u", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rolled, err := LoadKeySet(MethodEd25519, "new", newPriv, map[string][]byte{"old": oldPub})
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if _, err := newTestCodec(t, rolled, nil).Verify(oldToken.Token); err != nil {
		t.Fatalf("expected retired key to verify during rollover: %v", err)
	}
}

func TestLoadKeySetRSAFromPEM(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa: %v", err)
	}
	der := x509.MarshalPKCS1PrivateKey(priv)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})

	keys, err := LoadKeySet(MethodRS256, "rsa-1", pemBytes, nil)
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if keys.Source() != KeySourceConfigured {
		t.Fatalf("expected configured source, got %s", keys.Source())
	}

	c := newTestCodec(t, keys, nil)
	if c.Algorithm() != "RS256" {
		t.Fatalf("expected RS256, got %s", c.Algorithm())
	}
	issued, err := c.Issue("u", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(issued.Token); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestLoadKeySetRejectsSmallRSAKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate rsa: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	if _, err := LoadKeySet(MethodRS256, "", pemBytes, nil); err == nil {
		t.Fatal("expected 1024-bit rsa key to be rejected")
	}
}

func TestNewCodecValidation(t *testing.T) {
	keys, _ := GenerateKeySet(MethodEd25519, "")
	if _, err := NewCodec(Config{Issuer: "i", Audience: "a"}, nil); err == nil {
		t.Fatal("expected nil key provider to be rejected")
	}
	if _, err := NewCodec(Config{Audience: "a"}, keys); err == nil {
		t.Fatal("expected missing issuer to be rejected")
	}
	if _, err := NewCodec(Config{Issuer: "i", Audience: "a", Leeway: time.Hour}, keys); err == nil {
		t.Fatal("expected oversized leeway to be rejected")
	}
	if _, err := GenerateKeySet(SigningMethod("hs256"), ""); err == nil {
		t.Fatal("expected symmetric method to be unsupported")
	}
}
