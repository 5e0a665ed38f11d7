package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gatekeep.org/internal/migrate"
)

const usage = "usage: migrate [-dsn <dsn>] [-dir ops/migrations] up|down|seed|status"

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn := fs.String("dsn", os.Getenv("GATEKEEP_PG_DSN"), "PostgreSQL DSN")
	dir := fs.String("dir", "ops/migrations", "root directory holding sql/ migrations and seeds/")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return errors.New("missing DSN: provide -dsn or GATEKEEP_PG_DSN\n" + usage)
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, filepath.Join(*dir, "sql"), filepath.Join(*dir, "seeds"))

	switch cmd := fs.Arg(0); cmd {
	case "up":
		return mgr.Up(ctx)
	case "down":
		return mgr.Down(ctx)
	case "seed":
		return mgr.Seed(ctx)
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return nil
		}
		for i, name := range applied {
			fmt.Printf("%3d  %s\n", i+1, name)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}
