package stores

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/accesshub/internal"
	"github.com/redis/go-redis/v9"
)

// DefaultHistoryRetention keeps refresh records readable for security
// events after they expire.
const DefaultHistoryRetention = 30 * 24 * time.Hour

const (
	rotateStatusInactive int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRotated  int64 = 2
)

const (
	fieldOwner      = "owner"
	fieldTokenHash  = "token_hash"
	fieldExpiresAt  = "expires_at"
	fieldRevoked    = "revoked"
	fieldReplacedBy = "replaced_by"
	fieldUserAgent  = "user_agent"
	fieldIP         = "ip"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

// rotateRefreshScript is the atomic boundary for rotation. The old record is
// revoked only if it is still active, and the successor is written in the
// same step, so two concurrent rotations of one token cannot both win.
//
// KEYS: old record, owner active set, owner history index, new record.
// ARGV: old id, new id, new hash, new expires_at ms, now ms, user agent, ip,
// new record ttl ms, owner id. The owner indexes live at least as long as
// the new record.
const rotateRefreshScript = `
if redis.call("HGET", KEYS[1], "revoked") ~= "0" then
  return 0
end
local expires_at = tonumber(redis.call("HGET", KEYS[1], "expires_at") or "0")
if expires_at <= tonumber(ARGV[5]) then
  return 1
end

redis.call("HSET", KEYS[1], "revoked", "1", "replaced_by", ARGV[3], "updated_at", ARGV[5])
redis.call("SREM", KEYS[2], ARGV[1])

redis.call("HSET", KEYS[4],
  "owner", ARGV[9],
  "token_hash", ARGV[3],
  "expires_at", ARGV[4],
  "revoked", "0",
  "replaced_by", "",
  "user_agent", ARGV[6],
  "ip", ARGV[7],
  "created_at", ARGV[5],
  "updated_at", ARGV[5])
redis.call("PEXPIRE", KEYS[4], ARGV[8])
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[5], ARGV[2])
local keep = tonumber(ARGV[8])
for i = 2, 3 do
  if redis.call("PTTL", KEYS[i]) < keep then
    redis.call("PEXPIRE", KEYS[i], keep)
  end
end
return 2
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// extendIndexScript raises the TTL of each key to at least ARGV[1] ms and
// never shortens it.
const extendIndexScript = `
local keep = tonumber(ARGV[1])
for i = 1, #KEYS do
  if redis.call("PTTL", KEYS[i]) < keep then
    redis.call("PEXPIRE", KEYS[i], keep)
  end
end
return 1
`

var extendIndexLua = redis.NewScript(extendIndexScript)

// revokeRefreshScript marks a record revoked only if it is still active.
//
// KEYS: record, owner active set. ARGV: id, now ms.
const revokeRefreshScript = `
if redis.call("HGET", KEYS[1], "revoked") ~= "0" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "updated_at", ARGV[2])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`

var revokeRefreshLua = redis.NewScript(revokeRefreshScript)

// RefreshMeta is client context recorded with a refresh token.
type RefreshMeta struct {
	UserAgent string
	IP        string
}

// RefreshRecord is one link of an owner's refresh-token chain.
type RefreshRecord struct {
	ID                  string
	OwnerID             string
	TokenHash           string
	ExpiresAt           time.Time
	Revoked             bool
	ReplacedByTokenHash string
	UserAgent           string
	IP                  string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Active reports whether the record is unrevoked and unexpired at now.
func (r *RefreshRecord) Active(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// RefreshConfig tunes a [RefreshLedger].
type RefreshConfig struct {
	Options
	// HistoryRetention is how long a record stays readable after it expires.
	HistoryRetention time.Duration
	// DetectReuse enables the extra scan that distinguishes a replayed,
	// already-rotated secret from an unknown one.
	DetectReuse bool
}

// RefreshLedger stores hashed refresh secrets as a per-owner rotation chain.
//
// Layout per owner:
//
//	<prefix>:rt:{owner}:<id>  hash   one record
//	<prefix>:rta:{owner}      set    ids of unrevoked records
//	<prefix>:rth:{owner}      zset   every record id scored by creation time
type RefreshLedger struct {
	redis  redis.UniversalClient
	hasher Hasher
	cfg    RefreshConfig
}

// NewRefreshLedger returns a ledger storing records in client.
func NewRefreshLedger(client redis.UniversalClient, hasher Hasher, cfg RefreshConfig) *RefreshLedger {
	cfg.Options = cfg.Options.normalized()
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = DefaultHistoryRetention
	}
	return &RefreshLedger{redis: client, hasher: hasher, cfg: cfg}
}

func (l *RefreshLedger) recordKey(ownerID, id string) string {
	return l.cfg.Prefix + ":rt:" + ownerTag(ownerID) + ":" + id
}

func (l *RefreshLedger) activeKey(ownerID string) string {
	return l.cfg.Prefix + ":rta:" + ownerTag(ownerID)
}

func (l *RefreshLedger) historyKey(ownerID string) string {
	return l.cfg.Prefix + ":rth:" + ownerTag(ownerID)
}

// Issue creates an active record for ownerID and returns the raw secret.
// The raw value is never stored and cannot be recovered later.
func (l *RefreshLedger) Issue(ctx context.Context, ownerID string, ttl time.Duration, meta RefreshMeta) (string, error) {
	if ttl <= 0 {
		return "", errors.New("invalid refresh TTL")
	}

	raw, err := internal.NewRefreshSecret()
	if err != nil {
		return "", err
	}
	hash, err := l.hasher.Hash(raw)
	if err != nil {
		return "", fmt.Errorf("hash refresh secret: %w", err)
	}
	id, err := internal.NewRecordID()
	if err != nil {
		return "", err
	}

	now := l.cfg.Now()
	expiresAt := now.Add(ttl)
	recordKey := l.recordKey(ownerID, id)
	activeKey := l.activeKey(ownerID)
	historyKey := l.historyKey(ownerID)
	keep := ttl + l.cfg.HistoryRetention

	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey,
			fieldOwner, ownerID,
			fieldTokenHash, hash,
			fieldExpiresAt, msString(expiresAt),
			fieldRevoked, "0",
			fieldReplacedBy, "",
			fieldUserAgent, meta.UserAgent,
			fieldIP, meta.IP,
			fieldCreatedAt, msString(now),
			fieldUpdatedAt, msString(now),
		)
		pipe.PExpire(ctx, recordKey, keep)
		pipe.SAdd(ctx, activeKey, id)
		pipe.ZAdd(ctx, historyKey, redis.Z{Score: float64(now.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return "", backendErr(err)
	}
	if err := extendIndexLua.Run(ctx, l.redis, []string{activeKey, historyKey}, keep.Milliseconds()).Err(); err != nil {
		return "", backendErr(err)
	}

	return raw, nil
}

// Verify finds the unrevoked record matching raw.
//
// Errors: ErrNotFound when no unrevoked record matches, ErrExpired when the
// match is past its expiry.
func (l *RefreshLedger) Verify(ctx context.Context, ownerID, raw string) (*RefreshRecord, error) {
	rec, err := l.findUnrevoked(ctx, ownerID, raw)
	if err != nil {
		return nil, err
	}
	if !l.cfg.Now().Before(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	return rec, nil
}

// Rotate revokes the active record matching raw, links it to a fresh
// successor and returns the successor's raw secret.
//
// Errors: ErrInvalid when raw is not an active record (unknown, expired,
// revoked, or rotated concurrently), ErrReused when reuse detection is on and
// raw belongs to an already rotated record.
func (l *RefreshLedger) Rotate(ctx context.Context, ownerID, raw string, ttl time.Duration, meta RefreshMeta) (string, error) {
	rec, err := l.Resolve(ctx, ownerID, raw)
	if err != nil {
		return "", err
	}
	return l.RotateRecord(ctx, rec, ttl, meta)
}

// Resolve returns the active record matching raw without changing it. It
// classifies failures the same way Rotate does, so a caller can do work
// between the check and [RefreshLedger.RotateRecord].
func (l *RefreshLedger) Resolve(ctx context.Context, ownerID, raw string) (*RefreshRecord, error) {
	rec, err := l.Verify(ctx, ownerID, raw)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, ErrNotFound) && l.cfg.DetectReuse {
		if reused, rerr := l.wasRotated(ctx, ownerID, raw); rerr != nil {
			return nil, rerr
		} else if reused {
			return nil, ErrReused
		}
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return nil, ErrInvalid
	}
	return nil, err
}

// RotateRecord rotates a record previously returned by Verify. The record
// is re-checked atomically, so a stale copy loses with ErrInvalid.
func (l *RefreshLedger) RotateRecord(ctx context.Context, rec *RefreshRecord, ttl time.Duration, meta RefreshMeta) (string, error) {
	if rec == nil {
		return "", ErrInvalid
	}
	if ttl <= 0 {
		return "", errors.New("invalid refresh TTL")
	}

	next, err := internal.NewRefreshSecret()
	if err != nil {
		return "", err
	}
	nextHash, err := l.hasher.Hash(next)
	if err != nil {
		return "", fmt.Errorf("hash refresh secret: %w", err)
	}
	nextID, err := internal.NewRecordID()
	if err != nil {
		return "", err
	}

	now := l.cfg.Now()
	keep := ttl + l.cfg.HistoryRetention

	status, err := rotateRefreshLua.Run(ctx, l.redis,
		[]string{
			l.recordKey(rec.OwnerID, rec.ID),
			l.activeKey(rec.OwnerID),
			l.historyKey(rec.OwnerID),
			l.recordKey(rec.OwnerID, nextID),
		},
		rec.ID,
		nextID,
		nextHash,
		now.Add(ttl).UnixMilli(),
		now.UnixMilli(),
		meta.UserAgent,
		meta.IP,
		keep.Milliseconds(),
		rec.OwnerID,
	).Int64()
	if err != nil {
		return "", backendErr(err)
	}

	switch status {
	case rotateStatusRotated:
		return next, nil
	case rotateStatusExpired, rotateStatusInactive:
		return "", ErrInvalid
	default:
		return "", fmt.Errorf("unexpected rotate status %d", status)
	}
}

// Revoke marks the active record matching raw as revoked. Unknown, expired
// and already revoked secrets are silently accepted; only backend failures
// are reported.
func (l *RefreshLedger) Revoke(ctx context.Context, ownerID, raw string) error {
	rec, err := l.findUnrevoked(ctx, ownerID, raw)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = l.revoke(ctx, rec.OwnerID, rec.ID)
	return err
}

// RevokeAll revokes every unrevoked record of ownerID and returns how many
// records changed state.
func (l *RefreshLedger) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	ids, err := l.redis.SMembers(ctx, l.activeKey(ownerID)).Result()
	if err != nil {
		return 0, backendErr(err)
	}

	revoked := 0
	for _, id := range ids {
		ok, err := l.revoke(ctx, ownerID, id)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

func (l *RefreshLedger) revoke(ctx context.Context, ownerID, id string) (bool, error) {
	n, err := revokeRefreshLua.Run(ctx, l.redis,
		[]string{l.recordKey(ownerID, id), l.activeKey(ownerID)},
		id,
		l.cfg.Now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, backendErr(err)
	}
	return n == 1, nil
}

// History returns up to limit of the owner's records, most recently updated
// first. Index entries whose record has aged out are dropped as a side effect.
func (l *RefreshLedger) History(ctx context.Context, ownerID string, limit int) ([]RefreshRecord, error) {
	historyKey := l.historyKey(ownerID)
	ids, err := l.redis.ZRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		return nil, backendErr(err)
	}

	records, missing, err := l.load(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	if err := l.pruneHistory(ctx, ownerID, missing); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (l *RefreshLedger) findUnrevoked(ctx context.Context, ownerID, raw string) (*RefreshRecord, error) {
	if ownerID == "" || !internal.ValidRefreshSecret(raw) {
		return nil, ErrNotFound
	}

	ids, err := l.redis.SMembers(ctx, l.activeKey(ownerID)).Result()
	if err != nil {
		return nil, backendErr(err)
	}
	records, missing, err := l.load(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		if err := l.redis.SRem(ctx, l.activeKey(ownerID), members(missing)...).Err(); err != nil {
			return nil, backendErr(err)
		}
	}

	for i := range records {
		rec := &records[i]
		if rec.Revoked {
			continue
		}
		if l.hasher.Matches(raw, rec.TokenHash) {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// wasRotated reports whether raw matches a revoked, unexpired record that
// has a successor.
func (l *RefreshLedger) wasRotated(ctx context.Context, ownerID, raw string) (bool, error) {
	if !internal.ValidRefreshSecret(raw) {
		return false, nil
	}

	ids, err := l.redis.ZRange(ctx, l.historyKey(ownerID), 0, -1).Result()
	if err != nil {
		return false, backendErr(err)
	}
	records, missing, err := l.load(ctx, ownerID, ids)
	if err != nil {
		return false, err
	}
	if err := l.pruneHistory(ctx, ownerID, missing); err != nil {
		return false, err
	}

	now := l.cfg.Now()
	for i := range records {
		rec := &records[i]
		if !rec.Revoked || rec.ReplacedByTokenHash == "" || !now.Before(rec.ExpiresAt) {
			continue
		}
		if l.hasher.Matches(raw, rec.TokenHash) {
			return true, nil
		}
	}
	return false, nil
}

// pruneHistory drops index entries whose record has aged out.
func (l *RefreshLedger) pruneHistory(ctx context.Context, ownerID string, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	if err := l.redis.ZRem(ctx, l.historyKey(ownerID), members(missing)...).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

func members(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func (l *RefreshLedger) load(ctx context.Context, ownerID string, ids []string) ([]RefreshRecord, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := l.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, l.recordKey(ownerID, id))
		}
		return nil
	})
	if err != nil {
		return nil, nil, backendErr(err)
	}

	records := make([]RefreshRecord, 0, len(ids))
	var missing []string
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			missing = append(missing, ids[i])
			continue
		}
		records = append(records, decodeRefreshRecord(ids[i], fields))
	}
	return records, missing, nil
}

func decodeRefreshRecord(id string, f map[string]string) RefreshRecord {
	return RefreshRecord{
		ID:                  id,
		OwnerID:             f[fieldOwner],
		TokenHash:           f[fieldTokenHash],
		ExpiresAt:           parseMs(f[fieldExpiresAt]),
		Revoked:             f[fieldRevoked] != "0",
		ReplacedByTokenHash: f[fieldReplacedBy],
		UserAgent:           f[fieldUserAgent],
		IP:                  f[fieldIP],
		CreatedAt:           parseMs(f[fieldCreatedAt]),
		UpdatedAt:           parseMs(f[fieldUpdatedAt]),
	}
}
