package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/drblury/lambdaflow/controlplane"
	jsoncodec "github.com/drblury/lambdaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
)

const envPrefix = "LAMBDAFLOW"

type emulatorConfig struct {
	Addr        string
	Events      []string
	TraceID     string
	FunctionARN string
	Timeout     time.Duration
	Exit        bool
	LogLevel    string
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "lambdaflow-emulator",
		Short: "Serve the runtime API and queue events for a local handler",
		Long: `Serve the 2018-06-01 runtime API on --addr and queue every --event file.

Point a handler at it with RUNTIME_API_ENDPOINT=<addr>. Every reported result is
printed to standard output as one JSON line.`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(v)
			listener, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
			}
			return serve(cmd.Context(), cfg, listener, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "127.0.0.1:9001", "address the runtime API listens on")
	flags.StringSlice("event", nil, "file holding an event payload, may be repeated")
	flags.String("trace-id", "", "trace token attached to every queued event")
	flags.String("function-arn", "arn:aws:lambda:local:000000000000:function:lambdaflow", "invoked function ARN announced with every event")
	flags.Duration("timeout", 0, "announced invocation deadline, 0 announces none")
	flags.Bool("exit", false, "stop once every queued event was reported")
	flags.String("log-level", "info", "diagnostic log level (debug, info, warn, error)")
	return cmd
}

func loadConfig(v *viper.Viper) emulatorConfig {
	return emulatorConfig{
		Addr:        v.GetString("addr"),
		Events:      v.GetStringSlice("event"),
		TraceID:     v.GetString("trace-id"),
		FunctionARN: v.GetString("function-arn"),
		Timeout:     v.GetDuration("timeout"),
		Exit:        v.GetBool("exit"),
		LogLevel:    v.GetString("log-level"),
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// resultLine is the JSON form of a reported result.
type resultLine struct {
	RequestID string `json:"request_id,omitempty"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
}

func serve(ctx context.Context, cfg emulatorConfig, listener net.Listener, out, diag io.Writer) error {
	logger := loggingpkg.NewDiagnosticLogger(diag, parseLevel(cfg.LogLevel))

	srv, err := controlplane.New(
		controlplane.WithLogger(logger),
		controlplane.WithFunctionARN(cfg.FunctionARN),
		controlplane.WithInvocationTimeout(cfg.Timeout),
		controlplane.WithQueueSize(len(cfg.Events)+1),
	)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	var opts []controlplane.EventOption
	if cfg.TraceID != "" {
		opts = append(opts, controlplane.WithTraceID(cfg.TraceID))
	}
	for _, path := range cfg.Events {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read event %s: %w", path, err)
		}
		id, err := srv.Enqueue(payload, opts...)
		if err != nil {
			return err
		}
		logger.Info("Event queued", loggingpkg.LogFields{"request_id": id, "file": path})
	}

	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(listener)
	}()
	logger.Info("Runtime API listening", loggingpkg.LogFields{"addr": listener.Addr().String()})

	waitCtx := ctx
	want := -1
	if cfg.Exit {
		want = len(cfg.Events)
	}

	printed := 0
	for want < 0 || printed < want {
		results, err := srv.WaitForResults(waitCtx, printed+1)
		if err != nil {
			break
		}
		for _, res := range results[printed:] {
			if err := writeResult(out, res); err != nil {
				return err
			}
		}
		printed = len(results)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown runtime API: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeResult(out io.Writer, res controlplane.Result) error {
	line, err := jsoncodec.Marshal(resultLine{RequestID: res.RequestID, Kind: string(res.Kind), Body: string(res.Body)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(line))
	return err
}
