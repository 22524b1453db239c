package numerator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "ТСД001-RECEIPT-000042", Format("ТСД001", "receipt", 42))
	assert.Equal(t, "ТСД012-INPUT_BALANCE-1000000", Format("ТСД012", "input_balance", 1_000_000))
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func(_ context.Context, deviceID, typeTag string) (Number, error) {
		return Number{DocumentNumber: Format("P", typeTag, 1), Counter: 1}, nil
	})

	n, err := g.NextDocumentNumber(context.Background(), "dev", "expense")
	require.NoError(t, err)
	assert.Equal(t, "P-EXPENSE-000001", n.DocumentNumber)
}
