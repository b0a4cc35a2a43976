package db

import (
	"fmt"
	"io"
	"strings"
)

// MigrateActions are the actions RunMigrateCommand accepts.
var MigrateActions = []string{"up", "down", "status"}

// RunMigrateCommand applies a schema migration action to the database at
// dbPath and reports the resulting version to w. The database is opened
// without the automatic upgrade NewDB performs.
func RunMigrateCommand(w io.Writer, dbPath, action string) error {
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	migrations := MigrationsFS()
	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ All migrations applied successfully")
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ Rolled back one migration")
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want one of %s)", action, strings.Join(MigrateActions, ", "))
	}

	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Fprintf(w, "Schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
