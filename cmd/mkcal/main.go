// mkcal-demo exercises the calendar store end to end: open, pick the
// default notebook, save an event, list what's due today, and close.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-mkcal/mkcal/internal/model"
	"github.com/go-mkcal/mkcal/storage"
)

const version = "0.1.0"

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version")
		dbPath      = flag.String("db", "", "Database path (default: MKCAL_DB_PATH or ~/.local/share/mkcal/calendar.db)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `mkcal-demo v%s

Usage: mkcal-demo [options]

Options:
`, version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("mkcal-demo v%s\n", version)
		return
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath string) error {
	s, err := storage.Open(dbPath, model.NoZoneResolver)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.LoadAll(ctx); err != nil {
		return fmt.Errorf("load all: %w", err)
	}

	var defaultNotebook *storage.Notebook
	for _, nb := range s.Notebooks() {
		if nb.IsDefault {
			defaultNotebook = nb
			break
		}
	}
	if defaultNotebook == nil {
		return fmt.Errorf("no default notebook")
	}

	now := time.Now()
	inc := &storage.Incidence{
		Header: storage.Header{
			NotebookUID: defaultNotebook.UID,
			Summary:     "Demo meeting",
		},
		Kind: storage.KindEvent,
		Event: &storage.EventFields{
			DtStart: now.Add(time.Hour),
			DtEnd:   now.Add(2 * time.Hour),
		},
	}
	if err := s.Save(ctx, inc); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Info().Str("uid", inc.UID).Msg("saved event")

	instances, err := s.LoadByDate(ctx, now)
	if err != nil {
		return fmt.Errorf("load by date: %w", err)
	}
	for _, inst := range instances {
		log.Info().
			Str("summary", inst.Incidence.Summary).
			Time("start", inst.Start).
			Msg("instance due today")
	}
	return nil
}
