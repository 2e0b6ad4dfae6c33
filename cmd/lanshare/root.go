package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mineroot/lanshare/pkg"
)

// errReported ends a command whose failure was already printed.
var errReported = errors.New("reported")

var (
	cfg      = pkg.DefaultConfig()
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Version:       "0.1",
	Use:           "lanshare",
	Short:         "Share files with peers on the local network",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.Uint16Var(&cfg.Port, "port", cfg.Port, "TCP port shared files are served on (0 picks a free one)")
	f.Uint16Var(&cfg.DiscoveryPort, "discovery-port", cfg.DiscoveryPort, "UDP port announcements are sent to and received on")
	f.StringVar(&cfg.BroadcastHost, "broadcast", cfg.BroadcastHost, "address announcements are sent to")
	f.DurationVar(&cfg.Interval, "interval", cfg.Interval, "time between announcements")
	f.DurationVar(&cfg.PeerTTL, "peer-ttl", cfg.PeerTTL, "forget peers silent for this long (0 keeps them forever)")
	f.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent transfer connections (0 is unbounded)")
	f.StringVar(&logLevel, "log-level", zerolog.InfoLevel.String(), "log level (trace, debug, info, warn, error)")
	f.StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(shareCmd, listCmd, getCmd)
}

// newLogger builds the command logger. Logs go to stderr unless a log file
// is requested or the terminal belongs to the UI.
func newLogger(ui bool) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level: %w", err)
	}
	var out io.Writer = os.Stderr
	closeFn := func() {}
	if logFile != "" || ui {
		f, err := openLogFile(logFile)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		out, closeFn = f, func() { _ = f.Close() }
	}
	l := log.Output(zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stderr}).With().Caller().Logger().Level(level)
	return l, closeFn, nil
}

// commandContext is cancelled on SIGINT or SIGTERM and carries l.
func commandContext(parent context.Context, l zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return l.WithContext(ctx), stop
}

func openLogFile(logFilePath string) (*os.File, error) {
	if logFilePath == "" {
		const logDir, logFile = ".lanshare", "app.log"
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("unable get user's home directory: %w", err)
		}
		logDirPath := path.Join(homeDir, logDir)
		if err = os.MkdirAll(logDirPath, 0755); err != nil {
			return nil, fmt.Errorf("unable to create log directory: %w", err)
		}
		logFilePath = path.Join(logDirPath, logFile)
	}
	logFileFd, err := os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0664)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	return logFileFd, nil
}

// listen collects announcements for wait, or until ctx is done.
func listen(ctx context.Context, node *pkg.Node, wait time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	_ = node.Discover(ctx)
}
