package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type memorySink struct {
	values []Value
	err    error
}

func (m *memorySink) Publish(_ context.Context, v Value) error {
	if m.err != nil {
		return m.err
	}
	m.values = append(m.values, v)
	return nil
}

func TestFanout_Publish(t *testing.T) {
	errA := errors.New("a down")
	errC := errors.New("c down")
	a := &memorySink{err: errA}
	b := &memorySink{}
	c := &memorySink{err: errC}

	err := Fanout{a, b, c}.Publish(context.Background(), Millidegrees(42))
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errC)
	require.Len(t, multierr.Errors(err), 2)
	require.Equal(t, []Value{Millidegrees(42)}, b.values)

	require.NoError(t, Fanout{b}.Publish(context.Background(), Fault()))
	require.NoError(t, Fanout{}.Publish(context.Background(), Fault()))
}
