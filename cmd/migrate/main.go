// Command migrate applies the embedded schema migrations. Without -dsn it
// connects with the same NEXUS_DB_* settings the server reads.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

type command struct {
	name string
	run  func(*migrate.Migrate) (string, error)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("migrate: ")

	var (
		dsn     = flag.String("dsn", "", "database connection string (default from NEXUS_DB_*)")
		up      = flag.Bool("up", false, "apply all pending migrations")
		down    = flag.Bool("down", false, "revert all migrations")
		steps   = flag.Int("steps", 0, "apply N migrations, or revert -N")
		version = flag.Bool("version", false, "print the current version")
		force   = flag.Int("force", -1, "mark version N as clean without running it")
	)
	flag.Parse()

	cmd, err := selectCommand(*up, *down, *steps, *version, *force, isSet("force"))
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	if err := run(*dsn, cmd); err != nil {
		log.Fatal(err)
	}
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		set = set || f.Name == name
	})
	return set
}

func selectCommand(up, down bool, steps int, version bool, force int, forceSet bool) (command, error) {
	var chosen []command

	if version {
		chosen = append(chosen, command{"version", func(m *migrate.Migrate) (string, error) {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				return "no migrations applied", nil
			}
			return fmt.Sprintf("version %d (dirty: %v)", v, dirty), err
		}})
	}
	if forceSet {
		chosen = append(chosen, command{"force", func(m *migrate.Migrate) (string, error) {
			return fmt.Sprintf("forced to version %d", force), m.Force(force)
		}})
	}
	if up {
		chosen = append(chosen, command{"up", func(m *migrate.Migrate) (string, error) {
			return "migrations applied", m.Up()
		}})
	}
	if down {
		chosen = append(chosen, command{"down", func(m *migrate.Migrate) (string, error) {
			return "migrations reverted", m.Down()
		}})
	}
	if steps != 0 {
		chosen = append(chosen, command{"steps", func(m *migrate.Migrate) (string, error) {
			return fmt.Sprintf("applied %d steps", steps), m.Steps(steps)
		}})
	}

	switch len(chosen) {
	case 0:
		return command{}, errors.New("choose one of -up, -down, -steps, -version or -force")
	case 1:
		return chosen[0], nil
	default:
		return command{}, fmt.Errorf("conflicting commands: %s and %s", chosen[0].name, chosen[1].name)
	}
}

func run(dsn string, cmd command) error {
	if dsn == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		db := database.Config{Name: "nexus", User: "nexus", Password: "nexus"}
		if err := db.Finalize(config.DatabaseEnv); err != nil {
			return fmt.Errorf("database config: %w", err)
		}
		dsn = db.Dsn()
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer m.Close()

	msg, err := cmd.run(m)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Print("no change")
	case err != nil:
		return fmt.Errorf("%s: %w", cmd.name, err)
	default:
		log.Print(msg)
	}
	return nil
}
