package ports

import "context"

// ApplyUseCase is the driving port for one reconciliation run.
type ApplyUseCase interface {
	Execute(ctx context.Context) error
}
