package device_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementQuery(t *testing.T) {
	repo := NewDeviceRepo(nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sql, args, err := repo.incrementQuery("tsd-1", now).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE sys_devices SET document_counter = document_counter + 1, last_seen = $1, updated_at = $2")
	assert.Contains(t, sql, "WHERE device_id = $3 AND is_active = $4")
	assert.Contains(t, sql, "RETURNING id, device_id,")
	assert.Equal(t, []any{now, now, "tsd-1", true}, args)
}

func TestDeviceColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "device_id", "device_name", "device_model", "android_version", "app_version",
		"prefix", "is_active", "document_counter", "last_seen", "created_at", "updated_at",
	}, deviceColumns)
}
