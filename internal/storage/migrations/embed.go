package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresFS embeds the PostgreSQL schema: bars, earnings, runs and trade records.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse schema: bar archive and equity curves.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// Migration is one SQL file ready to apply.
type Migration struct {
	Name string
	SQL  string
}

// Backend names accepted by Plan.
const (
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Plan lists the migrations of backend in apply order without touching a database.
func Plan(backend string) ([]Migration, error) {
	switch backend {
	case BackendPostgres:
		return load(PostgresFS, "postgres")
	case BackendClickhouse:
		return load(ClickhouseFS, "clickhouse")
	default:
		return nil, fmt.Errorf("unknown migration backend %q", backend)
	}
}

// load reads every non-empty .sql file in dir, sorted by name.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: name, SQL: string(data)})
	}
	return out, nil
}
