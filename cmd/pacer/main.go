package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/pacer/internal/adapters/log"
	"github.com/bft-labs/pacer/internal/cliconfig"
	"github.com/bft-labs/pacer/pkg/pacer"
	"github.com/bft-labs/pacer/plugins/configwatcher"
	"github.com/bft-labs/pacer/plugins/statusapi"
)

const helpDescription = `
Adaptive batch scheduler for the family assistant.

Highlights:
  - Groups reminders and requests by time, person, priority and room.
  - Watches memory, CPU and device channels; admits batches only when they fit.
  - Degrades optional work gracefully under pressure and recovers step by step.
  - Items are submitted over a local HTTP API; batches are POSTed to the delivery service.
`

var exampleUsage = strings.TrimSpace(`
  pacer --dispatch-url http://hub.local:9000 --device-id kitchen
  pacer --config $HOME/.pacer/config.toml --profile requests --listen :7070
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "pacer",
		Short:   "Adaptive, resource-aware batch scheduler for a family assistant device",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// Precedence: flags, then PACER_* environment, then the config file.
			watch := false
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				watch = true
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log = log.Level(cliconfig.ParseLevel(cfg.LogLevel))

			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			if !watch {
				cfgFile = ""
			}
			switch cfg.Profile {
			case cliconfig.ProfileRequests:
				return run(log, cfg, cfgFile, pacer.NewRequestScheduler)
			default:
				return run(log, cfg, cfgFile, pacer.NewReminderScheduler)
			}
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.pacer/config.toml)")
	root.Flags().StringVar(&cfg.Profile, "profile", cfg.Profile, "payload profile: reminders or requests")

	root.Flags().StringVar(&cfg.DispatchURL, "dispatch-url", cfg.DispatchURL, "base URL of the delivery service")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for the delivery service")
	root.Flags().StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "device identifier sent with deliveries")
	root.Flags().DurationVar(&cfg.DispatchTimeout, "timeout", cfg.DispatchTimeout, "HTTP timeout per delivery")
	root.Flags().Float64Var(&cfg.DispatchRate, "dispatch-rate", cfg.DispatchRate, "max deliveries per second (0 = unlimited)")
	root.Flags().IntVar(&cfg.DispatchRetries, "retries", cfg.DispatchRetries, "retries per delivery on server errors")

	root.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "status API listen address")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json (empty disables persistence)")
	root.Flags().DurationVar(&cfg.StatusInterval, "status-interval", cfg.StatusInterval, "how often status.json is written")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.Flags().IntVar(&cfg.MaxBatchSize, "max-batch-size", cfg.MaxBatchSize, "maximum items per batch")
	root.Flags().IntVar(&cfg.MaxQueueSize, "max-queue-size", cfg.MaxQueueSize, "maximum pending items (0 = unbounded)")
	root.Flags().IntVar(&cfg.MaxConcurrentBatches, "max-concurrent", cfg.MaxConcurrentBatches, "maximum batches executing at once")
	root.Flags().DurationVar(&cfg.BatchingWindow, "batching-window", cfg.BatchingWindow, "how often ready items are batched")
	root.Flags().DurationVar(&cfg.TemporalWindow, "temporal-window", cfg.TemporalWindow, "bucket width for grouping by target time")
	root.Flags().DurationVar(&cfg.SampleInterval, "sample-interval", cfg.SampleInterval, "resource sampling interval")
	root.Flags().DurationVar(&cfg.ExecuteInterval, "execute-interval", cfg.ExecuteInterval, "batch admission interval")
	root.Flags().BoolVar(&cfg.GracefulDegradation, "graceful-degradation", cfg.GracefulDegradation, "shed optional work under pressure")

	root.Flags().Float64Var(&cfg.MemoryMB, "memory-mb", cfg.MemoryMB, "memory budget in MB (0 keeps the 512MB default)")
	root.Flags().Float64Var(&cfg.CPUPercent, "cpu-percent", cfg.CPUPercent, "CPU budget in percent")
	if err := root.Flags().MarkHidden("execute-interval"); err != nil {
		log.Info().Err(err).Msg("failed to hide execute-interval flag")
	}

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("pacer")
		os.Exit(1)
	}
}

// run starts a scheduler for payload type T and blocks until a signal
// arrives or the scheduler crashes.
func run[T any](log zerolog.Logger, cfg cliconfig.Config, watchPath string, newScheduler func(pacer.Config, ...pacer.Option[T]) (*pacer.Pacer[T], error)) error {
	libCfg := pacer.DefaultConfig()
	libCfg.MaxBatchSize = cfg.MaxBatchSize
	libCfg.MaxQueueSize = cfg.MaxQueueSize
	libCfg.MaxConcurrentBatches = cfg.MaxConcurrentBatches
	libCfg.BatchingWindow = cfg.BatchingWindow
	libCfg.TemporalWindow = cfg.TemporalWindow
	libCfg.SampleInterval = cfg.SampleInterval
	libCfg.ExecuteInterval = cfg.ExecuteInterval
	libCfg.GracefulDegradation = cfg.GracefulDegradation
	libCfg.Resources = libCfg.ResourceTotals(cfg.MemoryMB, cfg.CPUPercent)
	libCfg.DispatchURL = cfg.DispatchURL
	libCfg.AuthKey = cfg.AuthKey
	libCfg.DeviceID = cfg.DeviceID
	libCfg.DispatchTimeout = cfg.DispatchTimeout
	libCfg.DispatchRate = cfg.DispatchRate
	libCfg.DispatchRetries = cfg.DispatchRetries
	libCfg.StateDir = cfg.StateDir
	libCfg.StatusInterval = cfg.StatusInterval

	state := newStateLogger(log)
	opts := []pacer.Option[T]{
		pacer.WithLogger[T](logAdapter.Wrap(log)),
		pacer.WithEventHandler[T](state),
		statusapi.WithStatusAPI[T](statusapi.Config{Addr: cfg.ListenAddr}),
	}
	if watchPath != "" {
		opts = append(opts, configwatcher.WithConfigWatcher[T](configwatcher.Config{Path: watchPath}))
	}

	p, err := newScheduler(libCfg, opts...)
	if err != nil {
		return fmt.Errorf("create pacer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start pacer: %w", err)
	}

	select {
	case <-sigCh:
		log.Info().Msg("received signal, stopping...")
	case <-state.crashed():
		log.Error().Msg("pacer crashed")
	}

	if err := p.Stop(); err != nil {
		return fmt.Errorf("stop pacer: %w", err)
	}
	return nil
}

// stateLogger logs lifecycle transitions and reports crashes.
type stateLogger struct {
	pacer.BaseEventHandler
	log zerolog.Logger

	once    sync.Once
	crashCh chan struct{}
}

func newStateLogger(log zerolog.Logger) *stateLogger {
	return &stateLogger{log: log, crashCh: make(chan struct{})}
}

func (s *stateLogger) crashed() <-chan struct{} {
	return s.crashCh
}

func (s *stateLogger) OnStateChange(e pacer.StateChangeEvent) {
	s.log.Debug().
		Str("from", e.Previous.String()).
		Str("to", e.Current.String()).
		Str("reason", e.Reason).
		Msg("state change")
	if e.Current == pacer.StateCrashed {
		s.once.Do(func() { close(s.crashCh) })
	}
}

func (s *stateLogger) OnSchedulerEvent(e pacer.Event) {
	switch e.Kind {
	case pacer.EventOverflowHandled, pacer.EventBatchFailed, pacer.EventGracefulDegradationApplied:
		s.log.Warn().
			Str("kind", string(e.Kind)).
			Str("reason", e.Reason).
			Int("count", e.Count).
			Msg("scheduler event")
	}
}
