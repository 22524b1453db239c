// Package idempotency defines the key store behind X-Idempotency-Key.
package idempotency

import "context"

// Replay is a stored HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store reserves keys and remembers the responses they produced.
type Store interface {
	// AcquireKey reserves key for this request. Keys are scoped to userID.
	// It returns a Replay when the request already completed and an
	// IDEMPOTENCY_CONFLICT error when the key is in flight or was used for a
	// different request.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)
	// CompleteKey stores the response. Server errors release the key.
	CompleteKey(ctx context.Context, key, userID string, statusCode int, contentType string, body []byte) error
}
