package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/trackspeed/internal/monitoring"
)

// confirm asks the operator a yes/no question. Tests replace it.
var confirm = func(out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt+" [y/N]: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimSpace(line)
	return line == "y" || line == "Y"
}

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	migrations, err := Migrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	// migrations manage the schema, so open without applying them
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		return handleMigrateUp(database, migrations, out)
	case "down":
		return handleMigrateDown(database, migrations, out)
	case "status":
		return handleMigrateStatus(database, migrations, out)
	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: trackspeed migrate version <version_number>")
		}
		return handleMigrateVersion(database, migrations, args[1], out)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: trackspeed migrate force <version_number>")
		}
		return handleMigrateForce(database, migrations, args[1], out)
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func handleMigrateUp(database *DB, migrations fs.FS, out io.Writer) error {
	monitoring.Logf("Running migrations...")
	if err := database.MigrateUp(migrations); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ All migrations applied. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateDown(database *DB, migrations fs.FS, out io.Writer) error {
	monitoring.Logf("Rolling back one migration...")
	if err := database.MigrateDown(migrations); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration rolled back. Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateStatus(database *DB, migrations fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest available: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.SchemaMigrationsExists)

	switch {
	case status.Dirty:
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(out, "  trackspeed migrate force <version>")
	case status.Pending() > 0:
		fmt.Fprintf(out, "\n⚠️  Database is %d version(s) behind. Run 'trackspeed migrate up' to update.\n", status.Pending())
	default:
		fmt.Fprintln(out, "\n✓ Database is up to date!")
	}
	return nil
}

func handleMigrateVersion(database *DB, migrations fs.FS, versionStr string, out io.Writer) error {
	target, err := strconv.ParseUint(versionStr, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid version number: %s", versionStr)
	}
	if err := database.MigrateTo(migrations, uint(target)); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migrated to version %d\n", target)
	return nil
}

func handleMigrateForce(database *DB, migrations fs.FS, versionStr string, out io.Writer) error {
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return fmt.Errorf("invalid version number: %s", versionStr)
	}

	fmt.Fprintf(out, "⚠️  WARNING: Forcing migration version to %d\n", version)
	fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
	if !confirm(out, "Continue?") {
		fmt.Fprintln(out, "Aborted")
		return nil
	}

	if err := database.MigrateForce(migrations, version); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Migration version forced to %d\n", version)
	return nil
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, "Database Migration Commands")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: trackspeed migrate <command> [-db path]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up              Apply all pending migrations")
	fmt.Fprintln(out, "  down            Rollback one migration")
	fmt.Fprintln(out, "  status          Show current migration status and version")
	fmt.Fprintln(out, "  version <N>     Migrate to specific version N")
	fmt.Fprintln(out, "  force <N>       Force migration version to N (recovery only)")
	fmt.Fprintln(out, "  help            Show this help message")
}
