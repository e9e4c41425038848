package main

import (
	"flag"
	"log"

	"food-marketplace/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

func main() {
	var (
		migrationsPath string
		down           bool
	)
	flag.StringVar(&migrationsPath, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back every migration")
	flag.Parse()

	cfg := config.Load()
	if migrationsPath == "" {
		migrationsPath = cfg.Migrations.Path
	}

	if err := run(migrationsPath, cfg.Database.URL, down); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}

func run(migrationsPath, databaseURL string, down bool) error {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No migrations to apply")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to apply migrations from %s", migrationsPath)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "failed to read schema version")
	}
	log.Printf("Migrations applied: version=%d, dirty=%t", version, dirty)
	return nil
}
