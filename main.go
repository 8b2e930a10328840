package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/llehouerou/rpcbridge/internal/bridge"
	"github.com/llehouerou/rpcbridge/internal/config"
	"github.com/llehouerou/rpcbridge/internal/errmsg"
	"github.com/llehouerou/rpcbridge/internal/listener"
	"github.com/llehouerou/rpcbridge/internal/notify"
	"github.com/llehouerou/rpcbridge/internal/presence"
	"github.com/llehouerou/rpcbridge/internal/presence/discord"
	"github.com/llehouerou/rpcbridge/internal/presence/lastfm"
	"github.com/llehouerou/rpcbridge/internal/presence/mpris"
	"github.com/llehouerou/rpcbridge/internal/shell"
)

type options struct {
	configPath  string
	host        string
	port        int
	presence    string
	headless    bool
	noAutostart bool
	logLevel    string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flags := pflag.NewFlagSet("rpcbridge", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (overrides the default locations)")
	flags.StringVar(&opts.host, "host", "", "address to listen on")
	flags.IntVarP(&opts.port, "port", "p", 0, "port to listen on")
	flags.StringVar(&opts.presence, "presence", "", "presence host: discord, mpris or lastfm")
	flags.BoolVar(&opts.headless, "headless", false, "run without the terminal UI")
	flags.BoolVar(&opts.noAutostart, "no-autostart", false, "do not start the server on launch")
	flags.StringVar(&opts.logLevel, "log-level", "", "diagnostics level: debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpConfigLoad, err))
	}
	applyFlags(cfg, opts)

	logger, closeLog, err := newLogger(opts, cfg)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer closeLog()
	slog.SetDefault(logger)

	host, err := newPresenceHost(cfg, logger)
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}

	sc := cfg.GetServerConfig()
	pc := cfg.GetPresenceConfig()
	b := bridge.New(host, bridge.Config{
		Addr: cfg.ServerAddr(),
		Listener: listener.Config{
			PingInterval:    sc.PingInterval,
			PingTimeout:     sc.PingTimeout,
			MaxMessageBytes: sc.MaxMessageBytes,
		},
		Assets:        &pc.Assets,
		AutoReconnect: *pc.AutoReconnect,
		RetryInterval: pc.RetryInterval,
		CallTimeout:   pc.CallTimeout,
	}, logger)
	defer b.Close()

	notifier, err := notify.New()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	tracker := notify.NewTracker(notifier, cfg.NotificationTimeout())
	_ = tracker.SetEnabled(cfg.NotificationsEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = config.Watch(ctx, cfg.Paths, func() {
		reloaded, err := config.Load(opts.configPath)
		if err != nil {
			logger.Warn(errmsg.Format(errmsg.OpConfigReload, err))
			return
		}
		b.SetAutoReconnect(*reloaded.GetPresenceConfig().AutoReconnect)
		if err := tracker.SetEnabled(reloaded.NotificationsEnabled()); err != nil {
			logger.Debug("close notification", "err", err)
		}
	})
	if err != nil {
		logger.Warn(errmsg.Format(errmsg.OpConfigReload, err))
	}

	if *sc.Autostart && !opts.noAutostart {
		b.StartServer()
	}

	shellOpts := shell.Options{
		ReconnectInterval: pc.ReconnectInterval,
		HostName:          host.Name(),
		Notifier:          tracker,
	}
	if opts.headless {
		shell.RunHeadless(ctx, b, shellOpts, logger)
		return nil
	}

	p := tea.NewProgram(shell.New(b, shellOpts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.presence != "" {
		cfg.Presence.Host = strings.ToLower(opts.presence)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
}

// newLogger writes diagnostics to stderr in headless mode and to a file in
// the XDG state directory when the terminal UI owns the screen.
func newLogger(opts options, cfg *config.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel())); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.headless {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), func() {}, nil
	}

	path, err := xdg.StateFile(filepath.Join("rpcbridge", "rpcbridge.log"))
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, handlerOpts)), func() {}, nil //nolint:nilerr // diagnostics are optional
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, handlerOpts)), func() {}, nil //nolint:nilerr // diagnostics are optional
	}
	return slog.New(slog.NewTextHandler(f, handlerOpts)), func() { _ = f.Close() }, nil
}

func newPresenceHost(cfg *config.Config, log *slog.Logger) (presence.Host, error) {
	switch cfg.GetPresenceConfig().Host {
	case config.HostMPRIS:
		return mpris.New(log.With("host", "mpris")), nil
	case config.HostLastfm:
		if !cfg.HasLastfmConfig() {
			return nil, errors.New("lastfm presence needs lastfm.api_key, lastfm.api_secret and lastfm.session_key")
		}
		return lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, cfg.Lastfm.SessionKey), nil
	case config.HostDiscord:
		return discord.New(cfg.DiscordClientID(), discord.WithLogger(log.With("host", "discord"))), nil
	default:
		return nil, fmt.Errorf("unknown presence host %q", cfg.Presence.Host)
	}
}
