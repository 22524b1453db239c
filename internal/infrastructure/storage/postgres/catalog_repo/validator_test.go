package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/catalog"
)

func TestExistsQuery(t *testing.T) {
	v := NewValidator(nil)
	refID := id.New()

	tests := []struct {
		kind    catalog.Kind
		wantSQL string
	}{
		{catalog.KindNomenclature, "SELECT 1 FROM cat_nomenclature WHERE id = $1 AND is_active = $2 LIMIT 1"},
		{catalog.KindUnit, "SELECT 1 FROM cat_units WHERE id = $1 AND is_active = $2 LIMIT 1"},
		{catalog.KindWarehouse, "SELECT 1 FROM cat_warehouses WHERE id = $1 AND is_active = $2 LIMIT 1"},
		{catalog.KindCategory, "SELECT 1 FROM cat_categories WHERE id = $1 AND is_active = $2 LIMIT 1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			q, err := v.existsQuery(tt.kind, refID)
			require.NoError(t, err)

			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, []any{refID, true}, args)
		})
	}
}

func TestExistsQuery_UnknownKind(t *testing.T) {
	_, err := NewValidator(nil).existsQuery(catalog.Kind("counterparty"), id.New())
	assert.Error(t, err)
}
