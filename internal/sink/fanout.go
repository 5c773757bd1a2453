package sink

import (
	"context"

	"go.uber.org/multierr"
)

// Fanout publishes every Value to each Publisher in order.
// A failing Publisher does not stop the others.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, v Value) error {
	var err error
	for _, p := range f {
		err = multierr.Append(err, p.Publish(ctx, v))
	}
	return err
}
