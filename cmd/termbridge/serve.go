package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/termbridge/internal/appconfig"
	"pkt.systems/termbridge/internal/session"
	"pkt.systems/termbridge/schema"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sessions declared in a config file and keep them running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			logger := pslog.NewWithOptions(cmd.ErrOrStderr(), pslog.Options{
				Mode:     logModeFromString(cfg.Logging.Mode),
				MinLevel: logLevelFromString(cfg.Logging.Level),
			})
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			if len(cfg.Sessions) == 0 {
				return fmt.Errorf("no sessions declared; add at least one under \"sessions\" in the config file")
			}

			mgr := session.NewManager()
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for _, sc := range cfg.Sessions {
				name := sc.Name
				_, sessCfg, err := appconfig.ToSessionConfig(sc)
				if err != nil {
					return fmt.Errorf("session %q: %w", name, err)
				}
				id, err := mgr.Start(ctx, sessCfg)
				if err != nil {
					return fmt.Errorf("session %q: start: %w", name, err)
				}
				logger.Info("session started", "name", name, "id", id, "transport", sessCfg.Transport.Kind)
				d, _ := mgr.Get(id)
				if d != nil {
					go logSessionEvents(ctx, logger, name, d)
				}
			}

			logger.Info("termbridge serving", "sessions", len(cfg.Sessions))
			<-ctx.Done()
			logger.Info("shutting down")
			for _, id := range mgr.List() {
				if err := mgr.Stop(id); err != nil {
					logger.Warn("session stop failed", "id", id, "err", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

// logSessionEvents relays one session's event bus into structured log
// lines until sub is closed by the session's own shutdown or ctx is done.
func logSessionEvents(ctx context.Context, logger pslog.Logger, name string, d *session.Dispatcher) {
	sub, cancel := d.Subscribe()
	defer cancel()
	log := logger.With("session", name)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch ev.Kind {
			case schema.EventStateChanged:
				log.Info("state changed", "from", ev.From, "to", ev.To)
			case schema.EventTriggerFired:
				log.Info("trigger fired", "trigger", ev.TriggerID)
			case schema.EventError:
				log.Warn("session error", "kind", ev.ErrKind, "message", ev.Message)
			case schema.EventBytesIn:
				log.Debug("bytes in", "n", len(ev.Bytes))
			case schema.EventBytesOut:
				log.Debug("bytes out", "n", len(ev.Bytes))
			}
		case <-ctx.Done():
			return
		}
	}
}

func logModeFromString(mode string) pslog.Mode {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "console", "pretty":
		return pslog.ModeConsole
	default:
		return pslog.ModeStructured
	}
}

func logLevelFromString(level string) pslog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return pslog.DebugLevel
	case "warn", "warning":
		return pslog.WarnLevel
	case "error":
		return pslog.ErrorLevel
	default:
		return pslog.InfoLevel
	}
}
