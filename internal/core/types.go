package core

import (
	"context"

	"radar/internal/types"
)

// Processor is one pipeline stage. It mutates job on acceptance and returns a
// *types.RejectionError to reject the document.
type Processor interface {
	Name() string
	Process(ctx context.Context, job *types.Job) error
}
