package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMaxSecretBytes bounds the input accepted by Hash and Verify when
	// Config.MaxSecretBytes is zero.
	DefaultMaxSecretBytes = 1024
)

var (
	// ErrSecretEmpty is returned when Hash is called with an empty secret.
	ErrSecretEmpty = errors.New("secret must not be empty")
	// ErrSecretTooLong is returned when a secret exceeds MaxSecretBytes.
	ErrSecretTooLong = errors.New("secret exceeds maximum length")
	// ErrMalformedHash is returned by Verify and NeedsUpgrade for stored values
	// that are not argon2id PHC strings this package can read.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Config holds the argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxSecretBytes int
}

// Argon2 hashes and verifies secrets. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewArgon2 validates cfg and returns a hasher bound to it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxSecretBytes <= 0 {
		cfg.MaxSecretBytes = DefaultMaxSecretBytes
	}

	return &Argon2{config: cfg}, nil
}

// Config returns the parameters new hashes are produced with.
func (a *Argon2) Config() Config {
	return a.config
}

// Hash produces a salted argon2id PHC string for secret.
//
// Secrets are hashed as raw bytes, without Unicode normalization. Length
// policy (minimum password size and so on) belongs to the caller; Hash only
// rejects empty and oversized input.
func (a *Argon2) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrSecretEmpty
	}
	if len(secret) > a.config.MaxSecretBytes {
		return "", ErrSecretTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(secret),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	saltEncoded := base64.StdEncoding.EncodeToString(salt)
	hashEncoded := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		saltEncoded,
		hashEncoded,
	), nil
}

// Verify reports whether candidate matches encodedHash. A mismatch is
// (false, nil); an error means the stored value could not be read or the
// candidate is oversized.
func (a *Argon2) Verify(candidate string, encodedHash string) (bool, error) {
	if len(candidate) > a.config.MaxSecretBytes {
		return false, ErrSecretTooLong
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	computed := argon2.IDKey(
		[]byte(candidate),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// Matches is Verify with every failure folded into false. Ledgers use it
// when scanning stored hashes, where an unreadable row is simply not a match.
func (a *Argon2) Matches(candidate string, encodedHash string) bool {
	ok, err := a.Verify(candidate, encodedHash)
	return err == nil && ok
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's current config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	if a.config.Memory > parsed.memory {
		return true, nil
	}
	if a.config.Time > parsed.time {
		return true, nil
	}
	if a.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	if a.config.KeyLength != parsed.keyLength {
		return true, nil
	}

	return false, nil
}

// parsePHC reads $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func parsePHC(encodedHash string) (*parsedPHC, error) {
	fields := strings.Split(encodedHash, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if fields[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	rawVersion, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return nil, errors.New("missing argon2 version")
	}
	if version, err := strconv.Atoi(rawVersion); err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	out := &parsedPHC{}
	if err := parseParams(fields[3], out); err != nil {
		return nil, err
	}

	var err error
	if out.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(out.salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}
	if out.hash, err = base64.StdEncoding.DecodeString(fields[5]); err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(out.hash) == 0 {
		return nil, errors.New("invalid hash length")
	}
	out.keyLength = uint32(len(out.hash))

	return out, nil
}

// parseParams fills memory, time and parallelism from "m=..,t=..,p=..".
// Each key must appear exactly once and meet the package minimums.
func parseParams(part string, out *parsedPHC) error {
	seen := make(map[string]bool, 3)
	for _, pair := range strings.Split(part, ",") {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return errors.New("invalid parameter entry")
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := parseAtLeast(raw, 32, uint64(minMemoryKB))
			if err != nil {
				return errors.New("invalid memory parameter")
			}
			out.memory = uint32(v)
		case "t":
			v, err := parseAtLeast(raw, 32, uint64(minTimeCost))
			if err != nil {
				return errors.New("invalid time parameter")
			}
			out.time = uint32(v)
		case "p":
			v, err := parseAtLeast(raw, 8, uint64(minParallelism))
			if err != nil {
				return errors.New("invalid parallelism parameter")
			}
			out.parallelism = uint8(v)
		default:
			return errors.New("unsupported parameter")
		}
	}
	if len(seen) != 3 {
		return errors.New("missing parameters")
	}
	return nil
}

func parseAtLeast(raw string, bits int, min uint64) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, err
	}
	if v < min {
		return 0, errors.New("below minimum")
	}
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("argon2 memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("argon2 time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("argon2 parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("argon2 salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("argon2 key length must be >= 16")
	}
	if cfg.MaxSecretBytes < 0 {
		return errors.New("argon2 max secret bytes must be >= 0")
	}

	return nil
}
