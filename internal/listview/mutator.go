package listview

import (
	"context"

	"github.com/wardbook/portalsync/pkg/logging"
)

// Mutation executes one write against the remote data source.
type Mutation func(ctx context.Context) error

// Mutator runs writes on behalf of a form/modal and fulfills the refresh
// contract: the completion callback fires exactly once per successful write
// and never for a failed one.
type Mutator struct {
	onDone func(context.Context)
	logger *logging.Logger
}

// NewMutator creates a mutator whose completion callback is onDone, normally
// a Container's OnMutationDone.
func NewMutator(onDone func(context.Context), logger *logging.Logger) *Mutator {
	if onDone == nil {
		panic("listview: completion callback cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Mutator{onDone: onDone, logger: logger}
}

// Do executes op. On failure the error is returned to the caller for display
// and the refresh signal stays untouched.
func (m *Mutator) Do(ctx context.Context, op Mutation) error {
	if err := op(ctx); err != nil {
		m.logger.Warn("listview: mutation failed, refresh signal untouched", "error", err)
		return err
	}
	m.onDone(ctx)
	return nil
}
