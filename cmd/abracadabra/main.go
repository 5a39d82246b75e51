package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/SmonkeyMonkey/abracadabra/config"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {

	var (
		configPath string
		logLevel   string
		days       int
		eventsDSN  string
	)

	pflag.StringVarP(&configPath, "config", "c", "", "path to the TOML configuration, defaults are used when empty")
	pflag.StringVarP(&logLevel, "log-level", "l", "", "log level, overrides log.level")
	pflag.IntVarP(&days, "days", "d", -1, "days to simulate, overrides simulation.days")
	pflag.StringVar(&eventsDSN, "events-dsn", "", "sqlite DSN the audit events are written to, overrides events.dsn")

	pflag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if days >= 0 {
		cfg.Simulation.Days = days
	}
	if eventsDSN != "" {
		cfg.Events.DSN = eventsDSN
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Msgf("invalid log level %q", cfg.Log.Level)
	}
	log = log.Level(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := simulate(ctx, &log, cfg); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		os.Exit(1)
	}

	os.Exit(0)
}
