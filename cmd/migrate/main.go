package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"upwork_rss_bot/migrations"
)

type options struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/bot.db"`
}

func main() {
	var opts options
	if err := env.Parse(&opts); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	dbPath := flag.String("db", opts.DatabasePath, "path to sqlite database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command> [version]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down        Roll back one version")
		fmt.Fprintln(os.Stderr, "  down-to N   Roll back to version N")
		fmt.Fprintln(os.Stderr, "  status      Show migration status")
		fmt.Fprintln(os.Stderr, "  version     Show current version")
		fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(); err != nil {
		log.Fatalf("setup migrations: %v", err)
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "down-to":
		if len(args) < 2 {
			log.Fatalf("down-to: missing version")
		}
		var v int64
		v, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			log.Fatalf("down-to: invalid version %q", args[1])
		}
		err = goose.DownTo(db, ".", v)
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
