package api

import "context"

// ToolFunc is the unit of work bound to a graph node. It receives a private
// copy of the run state plus the node's metadata and returns the complete
// replacement state. Returning an error fails the run; tool errors are never
// retried automatically.
//
// Tools should honor ctx for long operations, but the engine imposes no
// timeout of its own.
type ToolFunc func(ctx context.Context, state State, meta Metadata) (State, error)
