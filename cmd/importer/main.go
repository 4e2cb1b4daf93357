package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/geo-challenges/internal/app"
	"github.com/gokatarajesh/geo-challenges/internal/challenge"
	"github.com/gokatarajesh/geo-challenges/internal/config"
	"github.com/gokatarajesh/geo-challenges/internal/importer"
)

func main() {
	var (
		discord = flag.String("discord", "", "Discord channel export (JSON) to import one challenge per day from")
		refs    = flag.String("refs", "", "Comma-separated challenge URLs or ids")
		force   = flag.Bool("force", false, "Refetch challenges that are already cached")
	)
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			log.Debug().Err(err).Msg("no .env file loaded")
		}
	}

	references, names := collectReferences(*discord, *refs)
	if len(references) == 0 {
		log.Fatal().Msg("nothing to import: pass -discord <file> or -refs <list>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, redisClient, err := app.NewStore(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	svc := app.NewImporter(cfg, st, log.Logger)

	log.Info().Int("references", len(references)).Bool("force", *force).Msg("import started")
	res, err := svc.LoadMany(ctx, references, func(p importer.Progress) {
		log.Info().
			Int("added", p.AddedCount).
			Int("failed", p.FailedCount).
			Int("remaining", p.RemainingCount).
			Msg("progress")
	}, *force, names)
	if err != nil {
		log.Fatal().Err(err).Msg("import rejected")
	}

	for _, item := range res.Errors {
		log.Warn().Int("index", item.Index).Str("reference", item.URL).Str("kind", string(challenge.KindOf(item.Err))).Err(item.Err).Msg("import failed")
	}
	log.Info().
		Int("added", res.AddedCount).
		Int("failed", res.FailedCount).
		Int("total", res.TotalCount).
		Float64("success_rate", res.SuccessRate).
		Msg("import finished")

	if res.AddedCount == 0 {
		os.Exit(1)
	}
}

// collectReferences reads the Discord export (names become dates) or the
// comma-separated list; the export wins when both are given.
func collectReferences(discordPath, refList string) ([]string, []string) {
	if discordPath != "" {
		data, err := os.ReadFile(discordPath)
		if err != nil {
			log.Fatal().Err(err).Str("file", discordPath).Msg("failed to read discord export")
		}
		links, err := challenge.ParseDiscordExport(data)
		if err != nil {
			log.Fatal().Err(err).Str("file", discordPath).Msg("failed to parse discord export")
		}
		log.Info().Int("links", len(links)).Msg("discord export parsed")
		return challenge.References(links), challenge.Names(links)
	}

	var out []string
	for _, r := range strings.Split(refList, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out, nil
}
