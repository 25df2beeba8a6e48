package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

var sqlMigrationTemplate = template.Must(template.New("ordergenie.sql").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}}
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback {{.CamelName}}
-- +goose StatementEnd
`))

// CreateSQLMigration writes an empty timestamped migration into dir and
// returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := strings.Trim(nameSanitizeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlMigrationTemplate, safe, "sql"); err != nil {
		return "", fmt.Errorf("create migration %q: %w", safe, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+safe+".sql"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("created migration %q not found in %q", safe, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
