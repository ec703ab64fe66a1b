package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/accesshub/internal"
	"github.com/redis/go-redis/v9"
)

// Channel is the delivery route an OTP was issued for.
type Channel string

// ChannelEmail is the only channel currently issued.
const ChannelEmail Channel = "email"

// DefaultOTPDigits is the code width used when OTPConfig.Digits is zero.
const DefaultOTPDigits = 6

// issueOTPScript allocates the next sequence number for (owner, channel),
// writes the record and indexes it under that sequence.
//
// KEYS: record, channel index, sequence counter.
// ARGV: owner, channel, code hash, expires_at ms, created_at ms, ttl ms, id.
const issueOTPScript = `
local seq = redis.call("INCR", KEYS[3])
redis.call("HSET", KEYS[1],
  "owner", ARGV[1],
  "channel", ARGV[2],
  "code_hash", ARGV[3],
  "expires_at", ARGV[4],
  "consumed", "0",
  "created_at", ARGV[5],
  "seq", seq)
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("ZADD", KEYS[2], seq, ARGV[7])
redis.call("PEXPIRE", KEYS[2], ARGV[6])
redis.call("PEXPIRE", KEYS[3], ARGV[6])
return seq
`

var issueOTPLua = redis.NewScript(issueOTPScript)

// consumeOTPScript marks a record consumed only if it is not already, and
// drops it together with every older entry from the channel index.
//
// KEYS: record, channel index. ARGV: seq.
const consumeOTPScript = `
if redis.call("HGET", KEYS[1], "consumed") ~= "0" then
  return 0
end
redis.call("HSET", KEYS[1], "consumed", "1")
redis.call("ZREMRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
return 1
`

var consumeOTPLua = redis.NewScript(consumeOTPScript)

// OTPRecord is one issued one-time passcode.
type OTPRecord struct {
	ID        string
	OwnerID   string
	Channel   Channel
	CodeHash  string
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
	Seq       int64
}

// IssuedOTP carries the raw code for out-of-band delivery.
type IssuedOTP struct {
	Code      string
	ExpiresAt time.Time
}

// OTPConfig tunes an [OTPLedger].
type OTPConfig struct {
	Options
	Digits int
}

// OTPLedger stores hashed one-time passcodes. Only the newest unconsumed
// record for an (owner, channel) pair is ever checked.
type OTPLedger struct {
	redis  redis.UniversalClient
	hasher Hasher
	cfg    OTPConfig
}

// NewOTPLedger returns a ledger storing records in client.
func NewOTPLedger(client redis.UniversalClient, hasher Hasher, cfg OTPConfig) *OTPLedger {
	cfg.Options = cfg.Options.normalized()
	if cfg.Digits == 0 {
		cfg.Digits = DefaultOTPDigits
	}
	return &OTPLedger{redis: client, hasher: hasher, cfg: cfg}
}

func (l *OTPLedger) recordKey(ownerID, id string) string {
	return l.cfg.Prefix + ":otp:" + ownerTag(ownerID) + ":" + id
}

func (l *OTPLedger) indexKey(ownerID string, ch Channel) string {
	return l.cfg.Prefix + ":otpi:" + ownerTag(ownerID) + ":" + string(ch)
}

func (l *OTPLedger) seqKey(ownerID string, ch Channel) string {
	return l.cfg.Prefix + ":otps:" + ownerTag(ownerID) + ":" + string(ch)
}

// Issue creates a fresh code for (ownerID, ch) valid for ttl. Earlier
// unconsumed codes are left in place but are no longer checked.
func (l *OTPLedger) Issue(ctx context.Context, ownerID string, ch Channel, ttl time.Duration) (IssuedOTP, error) {
	if ownerID == "" || ch == "" {
		return IssuedOTP{}, errors.New("owner and channel required")
	}
	if ttl <= 0 {
		return IssuedOTP{}, errors.New("invalid OTP TTL")
	}

	code, err := internal.NewOTP(l.cfg.Digits)
	if err != nil {
		return IssuedOTP{}, err
	}
	hash, err := l.hasher.Hash(code)
	if err != nil {
		return IssuedOTP{}, fmt.Errorf("hash otp: %w", err)
	}
	id, err := internal.NewRecordID()
	if err != nil {
		return IssuedOTP{}, err
	}

	now := l.cfg.Now()
	expiresAt := now.Add(ttl)

	err = issueOTPLua.Run(ctx, l.redis,
		[]string{l.recordKey(ownerID, id), l.indexKey(ownerID, ch), l.seqKey(ownerID, ch)},
		ownerID,
		string(ch),
		hash,
		expiresAt.UnixMilli(),
		now.UnixMilli(),
		ttl.Milliseconds(),
		id,
	).Err()
	if err != nil {
		return IssuedOTP{}, backendErr(err)
	}

	return IssuedOTP{Code: code, ExpiresAt: expiresAt}, nil
}

// Verify checks code against the newest unconsumed record and consumes it
// on success.
//
// Errors: ErrNotFound when there is no unconsumed record (including losing a
// concurrent verification), ErrExpired, ErrMismatch.
func (l *OTPLedger) Verify(ctx context.Context, ownerID string, ch Channel, code string) error {
	rec, err := l.latest(ctx, ownerID, ch)
	if err != nil {
		return err
	}
	if !l.cfg.Now().Before(rec.ExpiresAt) {
		return ErrExpired
	}
	if !internal.ValidOTP(code, l.cfg.Digits) || !l.hasher.Matches(code, rec.CodeHash) {
		return ErrMismatch
	}

	n, err := consumeOTPLua.Run(ctx, l.redis,
		[]string{l.recordKey(ownerID, rec.ID), l.indexKey(ownerID, ch)},
		rec.Seq,
	).Int64()
	if err != nil {
		return backendErr(err)
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

func (l *OTPLedger) latest(ctx context.Context, ownerID string, ch Channel) (*OTPRecord, error) {
	if ownerID == "" {
		return nil, ErrNotFound
	}

	indexKey := l.indexKey(ownerID, ch)
	ids, err := l.redis.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, backendErr(err)
	}

	for _, id := range ids {
		fields, err := l.redis.HGetAll(ctx, l.recordKey(ownerID, id)).Result()
		if err != nil {
			return nil, backendErr(err)
		}
		if len(fields) == 0 {
			continue
		}
		rec := decodeOTPRecord(id, fields)
		if rec.Consumed {
			continue
		}
		return &rec, nil
	}
	return nil, ErrNotFound
}

func decodeOTPRecord(id string, f map[string]string) OTPRecord {
	seq, _ := strconv.ParseInt(f["seq"], 10, 64)
	return OTPRecord{
		ID:        id,
		OwnerID:   f["owner"],
		Channel:   Channel(f["channel"]),
		CodeHash:  f["code_hash"],
		ExpiresAt: parseMs(f["expires_at"]),
		Consumed:  f["consumed"] != "0",
		CreatedAt: parseMs(f["created_at"]),
		Seq:       seq,
	}
}
