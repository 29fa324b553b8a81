package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.RegisterCloser("buffer", closerFunc(func() error { order = append(order, "buffer"); return nil }))
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	assert.Equal(t, []string{"http", "buffer", "store"}, order)
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	first := errors.New("first")
	second := errors.New("second")
	ran := false
	m.Register("a", func(context.Context) error { return first })
	m.Register("b", func(context.Context) error { ran = true; return nil })
	m.Register("c", func(context.Context) error { return second })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.True(t, ran, "a failing hook does not stop the rest")
}

func TestShutdownAppliesTimeout(t *testing.T) {
	m := New(10*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, m.Shutdown(context.Background()), context.DeadlineExceeded)
}
