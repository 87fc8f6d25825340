// Package migrations bundles the FlowBench schema into the binary.
// Importing it for side effects registers the files with the database
// package:
//
//	import _ "github.com/nerrad567/flowbench-core/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/flowbench-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
