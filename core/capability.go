package core

import "context"

// Capability is a named operation with a fixed schema of named string
// arguments and a string result. Side effects are the capability's own
// business; the router only sees the returned text.
type Capability interface {
	// Name returns the unique identifier (snake_case) exposed to models.
	Name() string

	// Description tells the model when to use the capability.
	Description() string

	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any

	// Invoke executes the capability.
	Invoke(ctx context.Context, args map[string]string) (string, error)
}
