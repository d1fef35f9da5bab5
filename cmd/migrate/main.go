package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"storefront-be/internal/config"
	"storefront-be/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrator is the part of *migrate.Migrate the command drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
}

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down, steps or version")
	steps := flag.Int("steps", 1, "number of steps for -mode=steps (negative rolls back)")
	dir := flag.String("dir", "migrations", "migrations directory")
	flag.Parse()

	cfg := config.LoadConfig()

	m, err := migrate.New("file://"+*dir, db.MigrationURL(cfg))
	if err != nil {
		log.Fatalf("failed to open migrations: %v", err)
	}
	defer m.Close()

	msg, err := run(m, *mode, *steps)
	if err != nil {
		log.Fatal(err)
	}
	log.Println(msg)
}

func run(m migrator, mode string, steps int) (string, error) {
	var err error
	switch mode {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if steps == 0 {
			return "", errors.New("steps must not be zero")
		}
		err = m.Steps(steps)
	case "version":
		return describeVersion(m)
	default:
		return "", fmt.Errorf("unknown mode: %s (use up, down, steps or version)", mode)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return "no change", nil
	}
	if err != nil {
		return "", fmt.Errorf("migration %s failed: %w", mode, err)
	}
	return describeVersion(m)
}

func describeVersion(m migrator) (string, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return "no migrations applied", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read version: %w", err)
	}
	if dirty {
		return fmt.Sprintf("version %d (dirty)", v), nil
	}
	return fmt.Sprintf("version %d", v), nil
}
