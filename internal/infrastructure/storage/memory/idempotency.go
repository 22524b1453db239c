package memory

import (
	"context"
	"sync"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/domain/idempotency"
)

type idempotencyRecord struct {
	operation   string
	requestHash string
	done        bool
	replay      idempotency.Replay
	expiresAt   time.Time
}

// IdempotencyStore implements idempotency.Store in process memory.
type IdempotencyStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]*idempotencyRecord
	now  func() time.Time
}

// NewIdempotencyStore creates an idempotency store whose keys live for ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, keys: make(map[string]*idempotencyRecord), now: time.Now}
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// AcquireKey implements idempotency.Store.
func (s *IdempotencyStore) AcquireKey(_ context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scoped := scopedKey(userID, key)
	rec, ok := s.keys[scoped]
	if !ok || s.now().After(rec.expiresAt) {
		s.keys[scoped] = &idempotencyRecord{
			operation:   operation,
			requestHash: requestHash,
			expiresAt:   s.now().Add(s.ttl),
		}
		return nil, nil
	}
	if rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).WithDetail("operation", operation)
	}
	if !rec.done {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	replay := rec.replay
	return &replay, nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(_ context.Context, key, userID string, statusCode int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scoped := scopedKey(userID, key)
	rec, ok := s.keys[scoped]
	if !ok {
		return nil
	}
	if statusCode >= 500 {
		delete(s.keys, scoped)
		return nil
	}
	rec.done = true
	rec.replay = idempotency.Replay{
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        append([]byte(nil), body...),
	}
	return nil
}

func scopedKey(userID, key string) string {
	return userID + "\x00" + key
}

// CleanupExpired drops expired keys and reports how many went.
func (s *IdempotencyStore) CleanupExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for k, rec := range s.keys {
		if now.After(rec.expiresAt) {
			delete(s.keys, k)
			n++
		}
	}
	return n, nil
}
