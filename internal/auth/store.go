package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix = "auth:refresh:"
	failKeyPrefix    = "auth:fail:"
	otpKeyPrefix     = "auth:otp:"
	otpTriesPrefix   = "auth:otpfail:"

	// MaxLoginFailures locks the account for the failure window once
	// reached.
	MaxLoginFailures = 5
	failureWindow    = 10 * time.Minute

	// MaxOTPAttempts invalidates the pending code once exhausted. The
	// attempt counter expires on its own window so a stale counter never
	// outlives the code it guarded.
	MaxOTPAttempts = 5
	otpTriesWindow = 5 * time.Minute
)

// TokenStore keeps refresh-token rotation state, login failure counters,
// and pending one-time codes in redis.
type TokenStore struct {
	rdb *redis.Client
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// SaveRefresh registers a refresh token's jti for one future rotation.
func (s *TokenStore) SaveRefresh(ctx context.Context, jti string, principal Principal, ttl time.Duration) error {
	value := string(principal.Kind) + ":" + principal.ID.String()
	if err := s.rdb.Set(ctx, refreshKeyPrefix+jti, value, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh: %w", err)
	}
	return nil
}

// ConsumeRefresh atomically removes the jti. A jti that is absent was
// either never issued, expired, or already rotated; the caller treats all
// three as reuse.
func (s *TokenStore) ConsumeRefresh(ctx context.Context, jti string) error {
	err := s.rdb.GetDel(ctx, refreshKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return ErrTokenReused
	}
	if err != nil {
		return fmt.Errorf("consume refresh: %w", err)
	}
	return nil
}

// RevokeRefresh drops a jti without rotation (logout).
func (s *TokenStore) RevokeRefresh(ctx context.Context, jti string) error {
	if err := s.rdb.Del(ctx, refreshKeyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}

// RecordFailure bumps the account's failure counter and returns the new
// count. The counter expires with the failure window.
func (s *TokenStore) RecordFailure(ctx context.Context, kind Kind, account string) (int64, error) {
	key := failKeyPrefix + string(kind) + ":" + account
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, failureWindow).Err(); err != nil {
			return count, fmt.Errorf("expire failure counter: %w", err)
		}
	}
	return count, nil
}

// Locked reports whether the account reached the failure limit.
func (s *TokenStore) Locked(ctx context.Context, kind Kind, account string) (bool, error) {
	count, err := s.rdb.Get(ctx, failKeyPrefix+string(kind)+":"+account).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read failure counter: %w", err)
	}
	return count >= MaxLoginFailures, nil
}

// ClearFailures resets the counter after a successful login.
func (s *TokenStore) ClearFailures(ctx context.Context, kind Kind, account string) error {
	if err := s.rdb.Del(ctx, failKeyPrefix+string(kind)+":"+account).Err(); err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	return nil
}

// SaveOTP stores a pending one-time code for the address, replacing any
// previous one and resetting the attempt counter.
func (s *TokenStore) SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, otpKeyPrefix+email, code, ttl).Err(); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	if err := s.rdb.Del(ctx, otpTriesPrefix+email).Err(); err != nil {
		return fmt.Errorf("reset otp attempts: %w", err)
	}
	return nil
}

// VerifyOTP checks the submitted code against the pending one. Attempts
// are bounded; exhausting them deletes the code.
func (s *TokenStore) VerifyOTP(ctx context.Context, email, code string) error {
	want, err := s.rdb.Get(ctx, otpKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPExpired
	}
	if err != nil {
		return fmt.Errorf("read otp: %w", err)
	}

	if want != code {
		tries, err := s.rdb.Incr(ctx, otpTriesPrefix+email).Result()
		if err != nil {
			return fmt.Errorf("count otp attempt: %w", err)
		}
		if tries == 1 {
			if err := s.rdb.Expire(ctx, otpTriesPrefix+email, otpTriesWindow).Err(); err != nil {
				return fmt.Errorf("expire otp attempts: %w", err)
			}
		}
		if tries >= MaxOTPAttempts {
			if err := s.rdb.Del(ctx, otpKeyPrefix+email, otpTriesPrefix+email).Err(); err != nil {
				return fmt.Errorf("expire otp: %w", err)
			}
		}
		return ErrOTPInvalid
	}

	if err := s.rdb.Del(ctx, otpKeyPrefix+email, otpTriesPrefix+email).Err(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}
