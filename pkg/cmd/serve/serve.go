package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pgx-contrib/pgxtrace"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/api"
	"github.com/mpapenbr/fpv-racedash/pkg/bracket"
	"github.com/mpapenbr/fpv-racedash/pkg/cmd/common"
	"github.com/mpapenbr/fpv-racedash/pkg/config"
	"github.com/mpapenbr/fpv-racedash/pkg/db/postgres"
	"github.com/mpapenbr/fpv-racedash/pkg/engine"
	"github.com/mpapenbr/fpv-racedash/pkg/store"
	"github.com/mpapenbr/fpv-racedash/pkg/store/memory"
	"github.com/mpapenbr/fpv-racedash/pkg/store/natskv"
	storepg "github.com/mpapenbr/fpv-racedash/pkg/store/postgres"
	"github.com/mpapenbr/fpv-racedash/pkg/utils"
)

const (
	backendMemory   = "memory"
	backendNats     = "nats"
	backendPostgres = "postgres"
	noBracket       = "none"
)

var engineConfig = config.DefaultEngineConfig()

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "computes rankings for an event and serves them via HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.Store, "store", backendMemory,
		"record store backend (memory, nats, postgres)")
	cmd.Flags().StringVar(&config.SnapshotFile, "snapshot", "",
		"JSON file with initial records (memory store)")
	cmd.Flags().StringVar(&config.Event, "event", "",
		"key of the event to follow (nats, postgres)")
	cmd.Flags().StringVar(&config.NatsURL, "nats-url", nats.DefaultURL,
		"URL of the NATS server")
	cmd.Flags().StringVar(&config.NatsBucket, "nats-bucket", natskv.DefaultBucket,
		"JetStream KV bucket holding the records")
	cmd.Flags().StringVar(&config.BracketFile, "bracket", "",
		"bracket format file or builtin name (empty: default format, none: no bracket)")
	cmd.Flags().StringVar(&config.Addr, "addr", ":8080",
		"listen addr of the HTTP API")
	cmd.Flags().StringVar(&config.ActivePollInterval, "active-poll-interval",
		storepg.DefaultActiveInterval.String(),
		"poll interval while a race is running (postgres store)")
	cmd.Flags().StringVar(&config.IdlePollInterval, "idle-poll-interval",
		storepg.DefaultIdleInterval.String(),
		"poll interval while no race is running (postgres store)")
	cmd.Flags().StringVar(&config.LogLevel, "log-level", "info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel, "sql-log-level", "info",
		"controls the log level for sql subsystem (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat, "log-format", "text",
		"controls the log output format (json, text)")
	cmd.Flags().BoolVar(&config.EnableTelemetry, "enable-telemetry", false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint, "telemetry-endpoint", "localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().BoolVar(&config.TelemetryStdout, "telemetry-stdout", false,
		"print telemetry data to stdout instead of sending it")
	cmd.Flags().IntVar(&engineConfig.ConsecutiveLaps, "consecutive-laps",
		engineConfig.ConsecutiveLaps, "number of laps for the consecutive metric")
	cmd.Flags().IntVar(&engineConfig.WinsRequired, "wins-required",
		engineConfig.WinsRequired, "heat wins required to become champion")
	cmd.Flags().IntVar(&engineConfig.MinHeats, "min-heats",
		engineConfig.MinHeats, "minimum number of finals heats")
	cmd.Flags().IntVar(&engineConfig.MaxHeats, "max-heats",
		engineConfig.MaxHeats, "maximum number of finals heats")
	cmd.Flags().IntVar(&engineConfig.BracketAnchor, "bracket-anchor",
		engineConfig.BracketAnchor, "race order of the first bracket race")
	return cmd
}

//nolint:funlen // readability
func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, sqlLogger, err := common.SetupLoggers()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		logger.Info("Enabling telemetry")
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			logger.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		if err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
			logger.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	src, err := openSource(ctx, sqlLogger)
	if err != nil {
		return err
	}
	defer src.Close()

	var eng *engine.Engine
	formats, watcher, err := setupBracket(func() { eng.Trigger() })
	if err != nil {
		return err
	}
	eng = engine.New(ctx, src,
		engine.WithSettings(engineConfig.Settings()),
		engine.WithFormatSource(formats))
	defer eng.Close()
	if watcher != nil {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error("bracket watch stopped", log.ErrorField(err))
			}
		}()
	}

	server := api.New(eng)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(config.Addr)
	}()
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err = <-errChan:
		log.Error("HTTP server stopped", log.ErrorField(err))
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("error shutting down HTTP server", log.ErrorField(shutdownErr))
	}
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Server terminated")
	return err
}

//nolint:cyclop // one branch per backend
func openSource(ctx context.Context, sqlLogger *log.Logger) (store.Source, error) {
	switch config.Store {
	case backendMemory:
		opts := []memory.Option{}
		if config.SnapshotFile != "" {
			r, err := memory.LoadFile(config.SnapshotFile)
			if err != nil {
				return nil, err
			}
			opts = append(opts, memory.WithRecords(r))
		}
		return memory.New(opts...), nil
	case backendNats:
		if config.Event == "" {
			return nil, errors.New("--event is required for the nats store")
		}
		if err := common.WaitForServices(utils.ExtractFromNatsURL(config.NatsURL)); err != nil {
			return nil, err
		}
		conn, err := nats.Connect(config.NatsURL)
		if err != nil {
			return nil, err
		}
		return natskv.New(ctx, conn, config.Event, natskv.WithBucket(config.NatsBucket))
	case backendPostgres:
		if config.Event == "" {
			return nil, errors.New("--event is required for the postgres store")
		}
		if err := common.WaitForServices(utils.ExtractFromDBURL(config.DB)); err != nil {
			return nil, err
		}
		pgTracer := pgxtrace.CompositeQueryTracer{
			postgres.NewMyTracer(sqlLogger, log.DebugLevel),
		}
		if config.EnableTelemetry {
			pgTracer = append(pgTracer, postgres.NewOtlpTracer())
		}
		pool, err := postgres.InitWithUrl(config.DB, postgres.WithTracer(pgTracer))
		if err != nil {
			return nil, err
		}
		return storepg.New(ctx, pool, config.Event,
			storepg.WithActiveInterval(parseDuration(config.ActivePollInterval,
				storepg.DefaultActiveInterval)),
			storepg.WithIdleInterval(parseDuration(config.IdlePollInterval,
				storepg.DefaultIdleInterval)))
	}
	return nil, fmt.Errorf("unknown store backend %q", config.Store)
}

// setupBracket resolves the bracket flag. A file is loaded into a watcher
// which calls onChange after every successful reload once it is running.
//
//nolint:whitespace // editor/linter issue
func setupBracket(onChange func()) (
	engine.FormatSource, *bracket.Watcher, error,
) {
	switch config.BracketFile {
	case noBracket:
		return staticSource{}, nil, nil
	case "":
		f, err := bracket.Builtin(bracket.DefaultFormat)
		return staticSource{f}, nil, err
	}
	if _, err := os.Stat(config.BracketFile); err != nil {
		f, err := bracket.Builtin(config.BracketFile)
		return staticSource{f}, nil, err
	}
	w, err := bracket.NewWatcher(config.BracketFile,
		bracket.WithOnChange(func(*bracket.Format) { onChange() }))
	if err != nil {
		return nil, nil, err
	}
	return w, w, nil
}

type staticSource struct{ f *bracket.Format }

func (s staticSource) Current() *bracket.Format { return s.f }

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn("Invalid duration value, using default",
			log.String("value", s), log.Duration("default", def))
		return def
	}
	return d
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
