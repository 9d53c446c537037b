// Package util holds small helpers shared by the command layer.
package util

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

const (
	// DefaultShortIDLength keeps the entity prefix plus three hex characters.
	DefaultShortIDLength = 8
	// MaxAmbiguousCandidates bounds the candidates listed in an ambiguity error.
	MaxAmbiguousCandidates = 5
)

// ShortID truncates id to n characters, or DefaultShortIDLength when n <= 0.
//
//	ShortID("task-1a2b3c4d", 0)  → "task-1a2"
//	ShortID("task-1a2b3c4d", 10) → "task-1a2b3"
func ShortID(id string, n int) string {
	if n <= 0 {
		n = DefaultShortIDLength
	}
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// IDPrefixResolver finds persisted IDs by prefix. storage.SQLStore
// implements it.
type IDPrefixResolver interface {
	FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
	FindProjectIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ResolveTaskID expands a task ID or unique prefix into a full task ID.
// "1a2b" and "task-1a2b" are treated alike.
func ResolveTaskID(ctx context.Context, r IDPrefixResolver, idOrPrefix string) (string, error) {
	return resolve(ctx, idOrPrefix, models.TaskIDPrefix, "task", r.FindTaskIDsByPrefix)
}

// ResolveProjectID expands a project ID or unique prefix into a full
// project ID.
func ResolveProjectID(ctx context.Context, r IDPrefixResolver, idOrPrefix string) (string, error) {
	return resolve(ctx, idOrPrefix, models.ProjectIDPrefix, "project", r.FindProjectIDsByPrefix)
}

func resolve(ctx context.Context, idOrPrefix, entityPrefix, entity string,
	find func(context.Context, string) ([]string, error)) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", types.NewValidationError("%s ID is required", entity)
	}
	normalized := idOrPrefix
	if !strings.HasPrefix(normalized, entityPrefix) {
		normalized = entityPrefix + normalized
	}

	candidates, err := find(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("find %s IDs: %w", entity, err)
	}
	for _, c := range candidates {
		if c == normalized {
			return c, nil
		}
	}

	switch len(candidates) {
	case 0:
		return "", types.NewNotFoundError("%s %s", entity, idOrPrefix)
	case 1:
		return candidates[0], nil
	default:
		shown := candidates
		if len(shown) > MaxAmbiguousCandidates {
			shown = shown[:MaxAmbiguousCandidates]
		}
		return "", types.NewValidationError("%s prefix %q is ambiguous, matches %s",
			entity, idOrPrefix, strings.Join(shown, ", "))
	}
}
