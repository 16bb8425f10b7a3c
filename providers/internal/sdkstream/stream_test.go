package sdkstream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Borahm/modelfusion/core"
)

type fakeSource struct {
	items  []string
	err    error
	pos    int
	closed int
}

func (f *fakeSource) Next() bool {
	if f.pos >= len(f.items) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeSource) Current() string { return f.items[f.pos-1] }

func (f *fakeSource) Err() error {
	if f.pos >= len(f.items) {
		return f.err
	}
	return nil
}

func (f *fakeSource) Close() error {
	f.closed++
	return nil
}

var errWire = errors.New("wire")

func wrapErr(err error) error { return &core.ProviderError{Provider: "fake", Message: err.Error(), Err: core.ErrNetwork} }

func collect(t *testing.T, s *Stream[string]) ([]string, core.DeltaEvent[string]) {
	t.Helper()
	var got []string
	for i := 0; i < 100; i++ {
		e := s.Recv(context.Background())
		if e.Terminal() {
			return got, e
		}
		got = append(got, e.FullDelta())
	}
	t.Fatal("stream did not terminate")
	return nil, core.DeltaEvent[string]{}
}

func TestOpenYieldsAllEvents(t *testing.T) {
	src := &fakeSource{items: []string{"a", "b", "c"}}

	s, err := Open[string](src, nil)
	require.NoError(t, err)

	got, last := collect(t, s)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, core.DeltaKindEnd, last.Kind())

	require.NoError(t, s.Close())
	assert.Equal(t, 1, src.closed)
}

func TestOpenSetupFailure(t *testing.T) {
	src := &fakeSource{err: errWire}

	s, err := Open[string](src, wrapErr)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNetwork)
	assert.Equal(t, 1, src.closed, "source is closed when setup fails")
}

func TestOpenEmptyStream(t *testing.T) {
	s, err := Open[string](&fakeSource{}, nil)
	require.NoError(t, err)

	got, last := collect(t, s)
	assert.Empty(t, got)
	assert.Equal(t, core.DeltaKindEnd, last.Kind())
}

func TestMidStreamErrorIsMapped(t *testing.T) {
	src := &fakeSource{items: []string{"a"}, err: errWire}

	s, err := Open[string](src, wrapErr)
	require.NoError(t, err)

	got, last := collect(t, s)
	assert.Equal(t, []string{"a"}, got)
	require.Equal(t, core.DeltaKindError, last.Kind())
	assert.ErrorIs(t, last.Err(), core.ErrNetwork)

	again := s.Recv(context.Background())
	assert.Equal(t, core.DeltaKindError, again.Kind(), "terminal event repeats")
}

func TestRecvHonoursContext(t *testing.T) {
	src := &fakeSource{items: []string{"a", "b"}}
	s, err := Open[string](src, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	assert.Equal(t, "a", s.Recv(ctx).FullDelta())
	cancel()

	e := s.Recv(ctx)
	require.Equal(t, core.DeltaKindError, e.Kind())
	assert.ErrorIs(t, e.Err(), context.Canceled)
}

func TestRecvAfterClose(t *testing.T) {
	s, err := Open[string](&fakeSource{items: []string{"a", "b"}}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	e := s.Recv(context.Background())
	assert.ErrorIs(t, e.Err(), core.ErrStreamClosed)
}
