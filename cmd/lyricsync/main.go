package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lyricsync/internal/app"
	"lyricsync/internal/config"
	"lyricsync/pkg/music"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.App.LogLevel = level
	}
	if err := app.SetupLogging(cfg.App.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create app")
	}
	if err := a.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("App exited with error")
	}
	return nil
}

func fetch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	query := music.SearchQuery{
		Title:    c.String("title"),
		Artist:   c.String("artist"),
		Album:    c.String("album"),
		Duration: c.Float64("duration"),
	}
	return app.FetchOnce(c.Context, cfg, query, os.Stdout, app.FetchOptions{
		JSON: c.Bool("json"),
		Save: c.Bool("save"),
	})
}

func listen(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Listen(ctx, cfg, os.Stdout, c.Bool("json"))
}

func main() {
	cliApp := &cli.App{
		Name:  "lyricsync",
		Usage: "Show synchronized lyrics for the song playing in your MPRIS player.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the TOML config file",
				Value:   config.DefaultPath(),
				EnvVars: []string{"LYRICSYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override app.log_level (trace, debug, info, warn, error)",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "Fetch lyrics for a song once and print them",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
					&cli.StringFlag{Name: "artist", Aliases: []string{"a"}},
					&cli.StringFlag{Name: "album"},
					&cli.Float64Flag{Name: "duration", Usage: "song length in seconds"},
					&cli.BoolFlag{Name: "json", Usage: "print the parsed lyrics as JSON"},
					&cli.BoolFlag{Name: "save", Usage: "also write the lyrics to the local lyrics directory"},
				},
				Action: fetch,
			},
			{
				Name:  "listen",
				Usage: "Print lyrics published to Redis by a running instance",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print the raw published state"},
				},
				Action: listen,
			},
		},
	}

	if err := cliApp.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
