package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	err error
}

func (f *fakeRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return f.err
}

func TestDo_RunsHooksAfterCommit(t *testing.T) {
	u := New(&fakeRunner{})

	var order []string
	err := u.Do(context.Background(), func(ctx context.Context, after func(AfterCommit)) error {
		after(func(ctx context.Context) { order = append(order, "hook") })
		order = append(order, "tx")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"tx", "hook"}, order)
}

func TestDo_SkipsHooksOnTxError(t *testing.T) {
	u := New(&fakeRunner{})

	fired := false
	err := u.Do(context.Background(), func(ctx context.Context, after func(AfterCommit)) error {
		after(func(ctx context.Context) { fired = true })
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.False(t, fired, "hooks must not fire when the transaction fails")
}

func TestDo_SkipsHooksOnCommitError(t *testing.T) {
	u := New(&fakeRunner{err: errors.New("commit failed")})

	fired := false
	err := u.Do(context.Background(), func(ctx context.Context, after func(AfterCommit)) error {
		after(func(ctx context.Context) { fired = true })
		return nil
	})

	require.Error(t, err)
	assert.False(t, fired)
}
