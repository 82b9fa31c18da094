// hyprlined is the Wayland status-bar service hub: a headless D-Bus daemon
// that owns the tray watcher, the notification server, and the background
// collectors that keep the observer hub current. It exports no windows and
// owns no GTK main loop; a separate presentation layer consumes the hub.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/INDIW33D/hyprline/internal/busconn"
	"github.com/INDIW33D/hyprline/internal/collector/battery"
	"github.com/INDIW33D/hyprline/internal/collector/brightness"
	"github.com/INDIW33D/hyprline/internal/collector/keyboardlayout"
	"github.com/INDIW33D/hyprline/internal/collector/network"
	"github.com/INDIW33D/hyprline/internal/collector/sysresources"
	"github.com/INDIW33D/hyprline/internal/collector/volume"
	"github.com/INDIW33D/hyprline/internal/config"
	"github.com/INDIW33D/hyprline/internal/dbusmenu"
	"github.com/INDIW33D/hyprline/internal/notifyserver"
	"github.com/INDIW33D/hyprline/internal/notifystore"
	"github.com/INDIW33D/hyprline/internal/observer"
	"github.com/INDIW33D/hyprline/internal/trayitem"
	"github.com/INDIW33D/hyprline/internal/watcher"
)

func main() {
	var (
		configPath     = flag.String("config", "", "path to config file (default: ~/.config/hyprline/hub.yaml)")
		verbose        = flag.Bool("v", false, "verbose logging")
		noTray         = flag.Bool("no-tray", false, "disable the tray watcher/resolver")
		noNotification = flag.Bool("no-notifications", false, "disable the notification server")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting hyprlined",
		"volume_poll_interval", cfg.Collectors.VolumePollInterval,
		"network_poll_interval", cfg.Collectors.NetworkPollInterval,
		"sysresources_poll_interval", cfg.Collectors.SysResourcesPollInterval,
	)

	app := &App{cfg: cfg, noTray: *noTray, noNotification: *noNotification}
	if err := app.Run(); err != nil {
		slog.Error("app failed", "error", err)
		os.Exit(1)
	}
}

// App bundles the daemon's long-lived components and coordinates their
// startup/shutdown.
type App struct {
	cfg            *config.Config
	noTray         bool
	noNotification bool

	conn     *busconn.Conn
	watcher  *watcher.Watcher
	tray     *trayitem.Resolver
	menu     *dbusmenu.Client
	store    *notifystore.Store
	notifier *notifyserver.Server
	hub      *observer.Hub

	battery    *battery.Collector
	volume     *volume.Collector
	brightness *brightness.Collector
	network    *network.Collector
	sysres     *sysresources.Collector

	ctx    context.Context
	cancel context.CancelFunc
}

// Run wires every component together, starts them, and blocks until a
// termination signal arrives.
func (a *App) Run() error {
	a.ctx, a.cancel = context.WithCancel(context.Background())

	if err := a.start(); err != nil {
		a.cancel()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("received signal, shutting down")

	a.cleanup()
	return nil
}

func (a *App) start() error {
	conn, err := busconn.Connect()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	a.conn = conn

	a.hub = observer.NewHub()

	if !a.noTray {
		w := watcher.New(conn, a.cfg.Tray.BusName)
		if err := w.Listen(); err != nil {
			return fmt.Errorf("start tray watcher: %w", err)
		}
		a.watcher = w

		a.tray = trayitem.New(conn, a.onTrayChange)
		go a.trayReconcileLoop()

		a.menu = dbusmenu.New(conn.Raw())
	}

	if !a.noNotification {
		storePath := a.cfg.Notifications.StorePath
		if storePath == "" {
			storePath = notifystore.DefaultPath()
		}
		store, err := notifystore.Open(storePath)
		if err != nil {
			return fmt.Errorf("open notification store: %w", err)
		}
		a.store = store

		notifyCh := make(chan notifyserver.Notification, 16)
		uiCh := make(chan notifyserver.UIEvent, 4)
		a.notifier = notifyserver.New(conn, store, notifyCh, uiCh)
		a.notifier.OnCountChanged(func(count uint32) {
			a.hub.NotificationCount().Set(count)
		})
		if err := a.notifier.Start(); err != nil {
			return fmt.Errorf("start notification server: %w", err)
		}
		go a.drainNotifyEvents(notifyCh, uiCh)

		if count, err := store.Count(); err == nil {
			a.hub.NotificationCount().Set(count)
		}
	}

	a.startCollectors()

	slog.Info("hyprlined running")
	return nil
}

// startCollectors brings up every background collector, logging (rather
// than failing the daemon) when an optional peer service is unavailable.
func (a *App) startCollectors() {
	a.battery = battery.New(a.conn.Raw(), a.hub.Battery())
	if err := a.battery.Start(a.ctx); err != nil {
		slog.Warn("battery collector unavailable", "error", err)
	}

	a.brightness = brightness.New(a.conn.Raw(), a.hub.Brightness())
	if err := a.brightness.Start(a.ctx); err != nil {
		slog.Warn("brightness collector unavailable", "error", err)
	}

	a.volume = volume.New(a.hub.Volume())
	a.volume.Start(a.ctx, a.cfg.Collectors.VolumePollInterval)

	a.network = network.New(a.conn.Raw(), a.hub.Network())
	a.network.Start(a.ctx, a.cfg.Collectors.NetworkPollInterval)

	a.sysres = sysresources.New(a.hub.SysResources())
	a.sysres.Start(a.ctx, a.cfg.Collectors.SysResourcesPollInterval)

	go a.keyboardLayoutLoop()
}

// keyboardLayoutLoop reconnects to Hyprland's event socket with a fixed
// backoff whenever the connection drops or the compositor is not yet up.
func (a *App) keyboardLayoutLoop() {
	const retryDelay = 5 * time.Second

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		path := keyboardlayout.SocketPath()
		if path == "" {
			select {
			case <-a.ctx.Done():
				return
			case <-time.After(retryDelay):
				continue
			}
		}

		conn, err := net.Dial("unix", path)
		if err != nil {
			slog.Debug("hyprland event socket unavailable", "error", err)
			select {
			case <-a.ctx.Done():
				return
			case <-time.After(retryDelay):
				continue
			}
		}

		if err := keyboardlayout.Watch(a.ctx, conn, a.hub.KeyboardLayout()); err != nil {
			slog.Debug("keyboard layout watch ended", "error", err)
		}
		conn.Close()

		select {
		case <-a.ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// trayReconcileLoop keeps the resolver's item set in line with the
// watcher's registrations. The watcher pushes registration/unregistration
// as signals rather than a pollable list change notification, so
// reconciliation is driven from a short ticker instead.
func (a *App) trayReconcileLoop() {
	if a.watcher == nil || a.tray == nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	a.tray.Reconcile(a.watcher.Items())

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.tray.Reconcile(a.watcher.Items())
		}
	}
}

// onTrayChange projects the resolver's richer snapshot onto the observer
// hub's decoupled TrayItemSnapshot shape.
func (a *App) onTrayChange() {
	items := a.tray.Snapshot()
	snapshots := make([]observer.TrayItemSnapshot, 0, len(items))
	for _, it := range items {
		snapshots = append(snapshots, observer.TrayItemSnapshot{
			Service:  it.Service,
			Title:    it.Title,
			Status:   string(it.Status),
			IconName: it.IconName,
		})
	}
	a.hub.Tray().Set(snapshots)
}

// drainNotifyEvents forwards notifyserver's channels into logging for now;
// a presentation layer subscribes to these directly once it exists.
func (a *App) drainNotifyEvents(notifyCh <-chan notifyserver.Notification, uiCh <-chan notifyserver.UIEvent) {
	for {
		select {
		case <-a.ctx.Done():
			return
		case n, ok := <-notifyCh:
			if !ok {
				return
			}
			slog.Debug("notification received", "id", n.ID, "app", n.AppName, "summary", n.Summary)
		case ev, ok := <-uiCh:
			if !ok {
				return
			}
			slog.Debug("notification ui event", "event", ev)
		}
	}
}

func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.battery != nil {
		a.battery.Stop()
	}
	if a.brightness != nil {
		a.brightness.Stop()
	}
	if a.volume != nil {
		a.volume.Stop()
	}
	if a.network != nil {
		a.network.Stop()
	}
	if a.sysres != nil {
		a.sysres.Stop()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
}
