package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/logger"
)

func main() {
	migrationDir := flag.String("path", "migrations", "Path to migration files")
	confirm := flag.Bool("yes", false, "Confirm destructive commands (down)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+*migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", *migrationDir).Msg("Migration failed to initialize")
	}
	defer m.Close()

	switch args[0] {
	case "up":
		report(log, m.Up(), "Migrated up")
	case "down":
		// Dropping the schema removes every candidate, outcome and evidence frame.
		if !*confirm {
			log.Fatal().Msg("down drops all exam data; re-run with -yes")
		}
		report(log, m.Down(), "Migrated down")
	case "steps":
		n := intArg(args, "steps")
		report(log, m.Steps(n), fmt.Sprintf("Applied %d step(s)", n))
	case "force":
		v := intArg(args, "force")
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Msg("Force failed")
		}
		log.Info().Int("version", v).Msg("Forced version")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("No migration applied yet")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Version failed")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
	default:
		printUsage()
		os.Exit(2)
	}
}

func report(log zerolog.Logger, err error, done string) {
	switch {
	case err == nil:
		log.Info().Msg(done)
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Msg("Schema already up to date")
	default:
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func intArg(args []string, cmd string) int {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "%s requires a numeric argument\n", cmd)
		os.Exit(2)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s argument %q: %v\n", cmd, args[1], err)
		os.Exit(2)
	}
	return n
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, steps <n>, version, force <version>")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
