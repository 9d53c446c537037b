package store

import (
	"context"

	"github.com/josephgoksu/guidedmodules/internal/module"
)

// DefinitionSource supplies module definitions to the engine. Definitions
// are read-only to the engine; the catalog keys them by (key, version).
type DefinitionSource interface {
	// Load reads every definition the source holds. Returned modules are
	// parsed but not prepared.
	Load(ctx context.Context) ([]*module.Module, error)

	// Describe returns a human-readable location for logs and errors.
	Describe() string
}
