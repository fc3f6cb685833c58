// Package migrations embeds the SQL schema into the binary so the journal
// database can be created without the .sql files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/beamline-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.Migrations = migrationsFS
}
