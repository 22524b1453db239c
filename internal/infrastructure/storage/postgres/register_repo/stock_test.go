package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/registers/stock"
)

func TestLockQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	a := entity.StockKey{NomenclatureID: id.New(), WarehouseID: id.New()}
	b := entity.StockKey{NomenclatureID: id.New(), WarehouseID: id.New()}

	sql, args, err := repo.lockQuery([]entity.StockKey{a, b}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT nomenclature_id, warehouse_id FROM reg_stock_lines "+
			"WHERE ((nomenclature_id = $1 AND warehouse_id = $2) OR (nomenclature_id = $3 AND warehouse_id = $4)) "+
			"ORDER BY nomenclature_id, warehouse_id FOR UPDATE",
		sql)
	assert.Equal(t, []any{a.NomenclatureID, a.WarehouseID, b.NomenclatureID, b.WarehouseID}, args)
}

func TestMovementsQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	wh := id.New()
	typ := entity.MovementExpense
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   stock.MovementFilter
		wantTail string
		wantArgs int
	}{
		{
			name:     "no filter",
			filter:   stock.MovementFilter{},
			wantTail: "FROM reg_stock_movements",
			wantArgs: 0,
		},
		{
			name:     "warehouse and type",
			filter:   stock.MovementFilter{WarehouseID: &wh, MovementType: &typ},
			wantTail: "FROM reg_stock_movements WHERE warehouse_id = $1 AND movement_type = $2",
			wantArgs: 2,
		},
		{
			name:     "from date",
			filter:   stock.MovementFilter{FromDate: &from},
			wantTail: "FROM reg_stock_movements WHERE movement_date >= $1",
			wantArgs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.movementsQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, tt.wantTail)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}
