package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bcaldwell/ynabsheets/pkg/config"
	"github.com/bcaldwell/ynabsheets/pkg/monthsync"
	"github.com/bcaldwell/ynabsheets/pkg/scheduler"
)

type Runner interface {
	Run(ctx context.Context) error
}

type options struct {
	configFile      string
	iniFile         string
	secretsFile     string
	credentialsFile string
	month           string
}

func main() {
	singleRun := flag.Bool("single-run", false, "sync once (disable cron)")
	month := flag.String("month", "", "month to sync as YYYY-MM-DD, defaults to the current month")
	configFile := flag.String("config", "./config.yml", "configuration file")
	iniFile := flag.String("ini", "./config.ini", "ini file with ynab_api_key, ynab_budget_id and sheet_id")
	secretsFile := flag.String("secrets", "./secrets.json", "secrets file")
	credentialsFile := flag.String("credentials", "", "google service account file, overrides credentialsFile in the config")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	help := flag.Bool("help", false, "show command help")

	flag.Parse()

	if *help {
		fmt.Println("ynab month to google sheets sync")
		fmt.Println("ynabsheets [options]")
		flag.PrintDefaults()
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// a missing .env is fine, values can come from the environment or files
	_ = godotenv.Load()

	opts := options{
		configFile:      *configFile,
		iniFile:         *iniFile,
		secretsFile:     *secretsFile,
		credentialsFile: *credentialsFile,
		month:           *month,
	}

	cfg, err := opts.load()
	if err != nil {
		slog.Error("failed to read config", "error", err)
		os.Exit(1)
	}

	s, err := scheduler.New(cfg.UpdateFrequency, cfg.RunTimeout.Duration, cfg.Retries, cfg.RetryDelay.Duration, opts.run)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *singleRun {
		runCtx := ctx
		if cfg.RunTimeout.Duration > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout.Duration)
			defer cancel()
		}

		if err := opts.run(runCtx); err != nil {
			slog.Error("sync failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := s.RunOnce(ctx); err != nil {
		slog.Error("sync failed", "error", err)
	}

	s.Start()
	slog.Info("scheduled sync", "schedule", cfg.UpdateFrequency, "timeout", cfg.RunTimeout.Duration, "retries", cfg.Retries)

	<-ctx.Done()
	s.Stop()
}

// load reads the config files and applies the command line overrides.
func (o options) load() (*config.Config, error) {
	err := config.ReadConfig(o.configFile, o.iniFile, o.secretsFile)
	if err != nil {
		return nil, err
	}

	cfg := config.CurrentConfig()
	if o.month != "" {
		cfg.Month = o.month
	}
	if o.credentialsFile != "" {
		cfg.CredentialsFile = o.credentialsFile
	}

	if _, err := cfg.TargetMonth(time.Now()); err != nil {
		return nil, err
	}

	return cfg, nil
}

// run re-reads the config and re-authenticates on every invocation.
func (o options) run(ctx context.Context) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}

	r, err := monthsync.New(ctx, cfg, config.CurrentSecrets())
	if err != nil {
		return err
	}
	defer r.Close()

	var runner Runner = r
	return runner.Run(ctx)
}
