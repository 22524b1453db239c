package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "tsdstock/internal/core/context"
)

func TestFromContext_EnrichesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext("trace-1", "req-1"))
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-1", DeviceID: "dev-9"})

	Info(ctx, "document posted", "number", "ТСД001-RECEIPT-000001")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "dev-9", fields["device_id"])
	assert.Equal(t, "ТСД001-RECEIPT-000001", fields["number"])
}

func TestSetDefault(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetDefault(&Logger{zap.New(core).Sugar()})
	t.Cleanup(func() { SetDefault(nil) })

	Warn(context.Background(), "lock wait")

	assert.Equal(t, 1, logs.FilterMessage("lock wait").Len())
}
