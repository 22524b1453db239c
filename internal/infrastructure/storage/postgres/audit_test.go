package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/domain/events"
)

func TestActionOf(t *testing.T) {
	tests := map[string]AuditAction{
		events.DocumentPosted:     AuditActionPost,
		events.DocumentCancelled:  AuditActionCancel,
		events.InventoryCompleted: AuditActionComplete,
		events.InventoryCancelled: AuditActionCancel,
		"document.archived":       AuditAction("archived"),
	}
	for eventType, want := range tests {
		assert.Equal(t, want, actionOf(eventType), eventType)
	}
}

func TestAuditInflate(t *testing.T) {
	svc, err := NewAuditService(nil)
	require.NoError(t, err)

	raw := bytes.Repeat([]byte(`{"quantity":"1.0000"}`), 1024)
	entry := AuditEntry{
		CompressionAlgo:   CompressionZstd,
		ChangesCompressed: svc.encoder.EncodeAll(raw, nil),
	}
	assert.Less(t, len(entry.ChangesCompressed), len(raw))

	require.NoError(t, svc.inflate(&entry))
	assert.Equal(t, raw, []byte(entry.Changes))
	assert.Nil(t, entry.ChangesCompressed)

	plain := AuditEntry{CompressionAlgo: CompressionNone, Changes: []byte(`{}`)}
	require.NoError(t, svc.inflate(&plain))
	assert.Equal(t, `{}`, string(plain.Changes))
}
