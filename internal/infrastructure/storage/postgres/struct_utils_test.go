package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
)

type mockDocument struct {
	entity.Header
	Status string   `db:"status"`
	Items  []string `db:"-"`
	note   string
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	for _, expected := range []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by",
		"number", "warehouse_id", "description", "status",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.Len(t, cols, 10)
}

func TestStructToMap_Embedded(t *testing.T) {
	now := time.Now().UTC()
	wh := id.New()
	doc := mockDocument{
		Header: entity.Header{
			BaseEntity: entity.BaseEntity{ID: id.New(), Version: 5, CreatedAt: now},
			Number:      "R-1",
			WarehouseID: wh,
		},
		Status: "draft",
		note:   "ignored",
	}

	m := StructToMap(&doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "R-1", m["number"])
	assert.Equal(t, wh, m["warehouse_id"])
	assert.Equal(t, "draft", m["status"])
	assert.Len(t, m, 10)
}

func TestPick(t *testing.T) {
	data := map[string]any{"id": 1, "number": "A", "version": 2, "extra": true}

	got := Pick(data, []string{"id", "number", "version", "missing"}, "version")

	assert.Equal(t, map[string]any{"id": 1, "number": "A"}, got)
}

func TestViolations(t *testing.T) {
	_, ok := UniqueViolation(assert.AnError)
	assert.False(t, ok)
	_, ok = CheckViolation(nil)
	assert.False(t, ok)
	assert.False(t, ForeignKeyViolation(assert.AnError))

	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "doc_documents_number_key"})
	constraint, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "doc_documents_number_key", constraint)

	constraint, ok = CheckViolation(&pgconn.PgError{Code: "23514", ConstraintName: "chk_stock_quantity"})
	assert.True(t, ok)
	assert.Equal(t, "chk_stock_quantity", constraint)
}
