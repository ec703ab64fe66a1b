package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/accesshub/jwt"
	"github.com/redis/go-redis/v9"
)

// TokenCodec signs and verifies access tokens. *jwt.Codec satisfies it.
type TokenCodec interface {
	Issue(subject string, ttl time.Duration) (jwt.Issued, error)
	Verify(token string) (*jwt.Claims, error)
}

// IssuedAccess is the result of [AccessLedger.Issue].
type IssuedAccess struct {
	Token     string
	ExpiresAt time.Time
}

// AccessIdentity is the result of a successful [AccessLedger.Verify].
type AccessIdentity struct {
	OwnerID   string
	ExpiresAt time.Time
}

// The owner's sorted set holds one member per issued token: the hash of its
// jti, scored by expiry in unix milliseconds. Expired members are trimmed on
// every write and read; the key TTL follows its newest member.
const issueAccessScript = `
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[3])
local newest = redis.call("ZRANGE", KEYS[1], -1, -1, "WITHSCORES")
if newest[2] then
  local ttl = tonumber(newest[2]) - tonumber(ARGV[3])
  if ttl > 0 then
    redis.call("PEXPIRE", KEYS[1], math.floor(ttl))
  end
end
return redis.call("ZCARD", KEYS[1])
`

var issueAccessLua = redis.NewScript(issueAccessScript)

// AccessLedger records every issued access token so that a token is only
// honoured while its record exists. Records are keyed by owner and hold only
// a hash of the token identifier.
type AccessLedger struct {
	redis  redis.UniversalClient
	codec  TokenCodec
	hasher Hasher
	opts   Options
}

// NewAccessLedger returns a ledger storing records in client.
func NewAccessLedger(client redis.UniversalClient, codec TokenCodec, hasher Hasher, opts Options) *AccessLedger {
	return &AccessLedger{
		redis:  client,
		codec:  codec,
		hasher: hasher,
		opts:   opts.normalized(),
	}
}

func (l *AccessLedger) key(ownerID string) string {
	return l.opts.Prefix + ":at:" + ownerTag(ownerID)
}

// Issue signs a token for ownerID and records the hash of its identifier.
func (l *AccessLedger) Issue(ctx context.Context, ownerID string, ttl time.Duration) (IssuedAccess, error) {
	issued, err := l.codec.Issue(ownerID, ttl)
	if err != nil {
		return IssuedAccess{}, err
	}

	idHash, err := l.hasher.Hash(issued.ID)
	if err != nil {
		return IssuedAccess{}, fmt.Errorf("hash token identifier: %w", err)
	}

	err = issueAccessLua.Run(ctx, l.redis,
		[]string{l.key(ownerID)},
		issued.ExpiresAt.UnixMilli(),
		idHash,
		l.opts.Now().UnixMilli(),
	).Err()
	if err != nil {
		return IssuedAccess{}, backendErr(err)
	}

	return IssuedAccess{Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// Verify checks the token's signature and claims, then looks for a live
// record whose hash matches its identifier.
//
// Errors: a wrapped jwt.ErrSignatureInvalid for codec failures, ErrNotFound
// when the owner has no live records, ErrRevokedOrInvalid when none match.
func (l *AccessLedger) Verify(ctx context.Context, token string) (*AccessIdentity, error) {
	claims, err := l.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	key := l.key(claims.Subject)
	now := l.opts.Now().UnixMilli()

	var live *redis.StringSliceCmd
	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now, 10))
		live = pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: "(" + strconv.FormatInt(now, 10),
			Max: "+inf",
		})
		return nil
	})
	if err != nil {
		return nil, backendErr(err)
	}

	hashes := live.Val()
	if len(hashes) == 0 {
		return nil, ErrNotFound
	}

	for _, h := range hashes {
		if l.hasher.Matches(claims.ID, h) {
			return &AccessIdentity{OwnerID: claims.Subject, ExpiresAt: claims.ExpiresAt}, nil
		}
	}

	return nil, ErrRevokedOrInvalid
}

// Revoke removes the record backing token when token belongs to ownerID.
// Unknown, invalid and foreign tokens are not an error.
func (l *AccessLedger) Revoke(ctx context.Context, ownerID, token string) error {
	claims, err := l.codec.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil
		}
		return err
	}
	if claims.Subject != ownerID {
		return nil
	}

	key := l.key(claims.Subject)
	hashes, err := l.redis.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return backendErr(err)
	}
	for _, h := range hashes {
		if l.hasher.Matches(claims.ID, h) {
			if err := l.redis.ZRem(ctx, key, h).Err(); err != nil {
				return backendErr(err)
			}
			return nil
		}
	}
	return nil
}

// RevokeAll drops every access record for ownerID and reports how many
// were removed.
func (l *AccessLedger) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	key := l.key(ownerID)

	var count *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.ZCard(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, backendErr(err)
	}
	return int(count.Val()), nil
}
