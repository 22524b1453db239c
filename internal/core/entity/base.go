// Package entity provides the entities shared by the ledger packages.
package entity

import (
	"context"
	"time"

	"tsdstock/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without database access.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity contains the identity and bookkeeping fields of documents and inventories.
type BaseEntity struct {
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch increments version and update time.
func (b *BaseEntity) Touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

// SetCreatedBy implements the audit enrichment contract.
func (b *BaseEntity) SetCreatedBy(userID string) {
	b.CreatedBy = userID
}

// SetUpdatedBy implements the audit enrichment contract.
func (b *BaseEntity) SetUpdatedBy(userID string) {
	b.UpdatedBy = userID
}
