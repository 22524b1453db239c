package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTx struct {
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *recordingTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *recordingTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type recordingBeginner struct {
	tx *recordingTx
}

type markerKey struct{}

func (b *recordingBeginner) Begin(ctx context.Context) (context.Context, Tx, error) {
	return context.WithValue(ctx, markerKey{}, true), b.tx, nil
}

func TestRun_Commit(t *testing.T) {
	b := &recordingBeginner{tx: &recordingTx{}}

	err := Run(context.Background(), b, func(ctx context.Context) error {
		assert.Equal(t, true, ctx.Value(markerKey{}))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, b.tx.committed)
	assert.False(t, b.tx.rolledBack)
}

func TestRun_RollbackOnError(t *testing.T) {
	b := &recordingBeginner{tx: &recordingTx{}}
	boom := errors.New("boom")

	err := Run(context.Background(), b, func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, b.tx.committed)
	assert.True(t, b.tx.rolledBack)
}

func TestRun_RollbackOnPanic(t *testing.T) {
	b := &recordingBeginner{tx: &recordingTx{}}

	assert.Panics(t, func() {
		_ = Run(context.Background(), b, func(context.Context) error { panic("bad") })
	})
	assert.True(t, b.tx.rolledBack)
}

func TestRun_CommitFailure(t *testing.T) {
	b := &recordingBeginner{tx: &recordingTx{commitErr: errors.New("disk full")}}

	err := Run(context.Background(), b, func(context.Context) error { return nil })

	assert.ErrorContains(t, err, "commit transaction")
}
