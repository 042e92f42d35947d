package migrations

import (
	"context"
	"fmt"

	"swing-backtest-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded schema in lexical order.
// Every file uses IF NOT EXISTS so reruns are no-ops.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	plan, err := Plan(BackendPostgres)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(plan))
	for _, m := range plan {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}
