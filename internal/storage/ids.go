package storage

import (
	"context"
	"fmt"
	"strings"
)

// prefixLimit caps prefix lookups; callers only need to tell one match
// from several.
const prefixLimit = 10

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindTaskIDsByPrefix returns the IDs of tasks starting with prefix, deleted
// or not.
func (s *SQLStore) FindTaskIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.findIDsByPrefix(ctx, "tasks", prefix)
}

// FindProjectIDsByPrefix returns the IDs of projects starting with prefix.
func (s *SQLStore) FindProjectIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.findIDsByPrefix(ctx, "projects", prefix)
}

func (s *SQLStore) findIDsByPrefix(ctx context.Context, table, prefix string) ([]string, error) {
	rows, err := s.query(ctx,
		`SELECT id FROM `+table+` WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT ?`,
		likeEscaper.Replace(prefix)+"%", prefixLimit)
	if err != nil {
		return nil, fmt.Errorf("find %s by prefix: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}
