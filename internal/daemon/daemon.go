// Package daemon runs the long-lived consumer process: it holds the single
// active registration on the bridge, wakes on cross-process signals, rescans
// on a timer as a safety net, and exposes a control socket for the CLI.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/adhanhq/actionbridge/internal/action"
	"github.com/adhanhq/actionbridge/internal/bridge"
	"github.com/adhanhq/actionbridge/internal/config"
	"github.com/adhanhq/actionbridge/internal/coord"
	"github.com/adhanhq/actionbridge/internal/ctl"
	"github.com/adhanhq/actionbridge/internal/notify"
	sig "github.com/adhanhq/actionbridge/internal/signal"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Daemon is the consumer watcher process.
type Daemon struct {
	dir      string
	cfg      config.Config
	logLevel LogLevel
	logger   *log.Logger
	logFile  io.Closer

	bridge   *bridge.Bridge
	fileLock *coord.FileLock
	watcher  *sig.Watcher
	server   *ctl.Server
	ticker   *time.Ticker
	desktop  notify.Desktop

	startedAt     time.Time
	delivered     atomic.Int64
	lastDrainNano atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once
}

// New creates a Daemon over the shared container at dir, logging to
// logs/watcher.log inside it.
func New(dir string, cfg config.Config) (*Daemon, error) {
	logPath := filepath.Join(dir, bridge.LogsDirName, "watcher.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open watcher log: %w", err)
	}

	return newDaemon(dir, cfg, logFile, logFile)
}

// newDaemon is the internal constructor for testing.
func newDaemon(dir string, cfg config.Config, w io.Writer, closer io.Closer) (*Daemon, error) {
	logger := log.New(w, "", log.LstdFlags)

	b, err := bridge.New(dir, bridge.Options{
		StaleWindow: time.Duration(cfg.Queue.StaleWindowSec) * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		dir:      dir,
		cfg:      cfg,
		logLevel: parseLogLevel(cfg.Logging.Level),
		logger:   logger,
		logFile:  closer,
		bridge:   b,
		fileLock: coord.NewFileLock(filepath.Join(dir, bridge.LocksDirName, "watcher.lock")),
		server:   ctl.NewServer(filepath.Join(dir, ctl.SocketName)),
		ticker:   time.NewTicker(time.Duration(cfg.Watcher.ScanIntervalSec) * time.Second),
		desktop:  notify.Desktop{Enabled: cfg.Notify.Desktop},
		ctx:      ctx,
		cancel:   cancel,
	}

	return d, nil
}

// Start acquires the singleton lock, registers the consumer, and begins the
// signal watcher, ticker loop and control socket. It does not block.
func (d *Daemon) Start() error {
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("watcher lock: %w", err)
	}
	d.log(LogLevelInfo, "watcher starting pid=%d dir=%s", os.Getpid(), d.dir)
	d.startedAt = time.Now()

	// Registration is also the startup lifecycle drain: anything enqueued
	// while no consumer was alive is delivered right here.
	d.bridge.RegisterConsumer(d.handleActions)
	d.lastDrainNano.Store(time.Now().UnixNano())

	debounce := time.Duration(d.cfg.Watcher.DebounceSec * float64(time.Second))
	d.watcher = sig.NewWatcher(d.bridge.QueueDir(), debounce, d.deliver)
	if err := d.watcher.Start(); err != nil {
		d.cleanup()
		return fmt.Errorf("start signal watcher: %w", err)
	}

	d.registerHandlers()
	if err := d.server.Start(); err != nil {
		d.watcher.Stop()
		d.cleanup()
		return fmt.Errorf("start control socket: %w", err)
	}
	d.log(LogLevelInfo, "control socket listening on %s", filepath.Join(d.dir, ctl.SocketName))

	d.wg.Add(1)
	go d.tickerLoop()

	d.log(LogLevelInfo, "watcher ready")
	return nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	d.waitSignals()
	return nil
}

func (d *Daemon) registerHandlers() {
	d.server.Handle("ping", func(req *ctl.Request) *ctl.Response {
		return ctl.SuccessResponse(map[string]string{"status": "ok"})
	})

	d.server.Handle("drain", func(req *ctl.Request) *ctl.Response {
		n := d.deliverNow()
		return ctl.SuccessResponse(map[string]int{"delivered": n})
	})

	d.server.Handle("status", func(req *ctl.Request) *ctl.Response {
		return ctl.SuccessResponse(d.status())
	})

	d.server.Handle("shutdown", func(req *ctl.Request) *ctl.Response {
		d.log(LogLevelInfo, "shutdown requested via control socket")
		go d.Shutdown()
		return ctl.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})
}

// Status is the control-socket status payload.
type Status struct {
	PID            int   `json:"pid"`
	UptimeSec      int64 `json:"uptime_sec"`
	Pending        int   `json:"pending"`
	DeliveredTotal int64 `json:"delivered_total"`
	LastDrainUnix  int64 `json:"last_drain_unix"`
}

func (d *Daemon) status() Status {
	pending, err := d.bridge.Pending()
	if err != nil {
		d.log(LogLevelWarn, "status: count pending failed: %v", err)
	}
	var lastDrain int64
	if nano := d.lastDrainNano.Load(); nano > 0 {
		lastDrain = time.Unix(0, nano).Unix()
	}
	return Status{
		PID:            os.Getpid(),
		UptimeSec:      int64(time.Since(d.startedAt).Seconds()),
		Pending:        pending,
		DeliveredTotal: d.delivered.Load(),
		LastDrainUnix:  lastDrain,
	}
}

// deliver is the debounced signal-watcher callback.
func (d *Daemon) deliver() {
	select {
	case <-d.ctx.Done():
		return
	default:
	}
	d.deliverNow()
}

func (d *Daemon) deliverNow() int {
	n := d.bridge.Deliver()
	d.lastDrainNano.Store(time.Now().UnixNano())
	if n > 0 {
		d.log(LogLevelInfo, "delivered %d action(s)", n)
	} else {
		d.log(LogLevelDebug, "drain found nothing")
	}
	return n
}

// handleActions is the registered consumer handler.
func (d *Daemon) handleActions(actions []action.Action) {
	for _, a := range actions {
		d.log(LogLevelInfo, "action subject=%s source=%s completed_at=%s",
			a.SubjectID, a.Source, a.CompletedAt.UTC().Format(time.RFC3339))
	}
	d.delivered.Add(int64(len(actions)))

	if err := d.desktop.Post("Actions recorded", fmt.Sprintf("%d action(s) received", len(actions))); err != nil {
		d.log(LogLevelWarn, "desktop notification failed: %v", err)
	}
}

// tickerLoop drains on a fixed interval. The cross-process signal is only a
// hint; the ticker guarantees eventual discovery of anything it misses.
func (d *Daemon) tickerLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.ticker.C:
			d.log(LogLevelDebug, "periodic drain triggered")
			d.deliverNow()
		}
	}
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	s := <-sigCh
	d.log(LogLevelInfo, "received signal=%s, initiating graceful shutdown", s)

	// Second signal → force exit
	go func() {
		<-sigCh
		d.log(LogLevelWarn, "received second signal, forcing exit")
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.log(LogLevelInfo, "shutdown started")

		d.cancel()
		d.ticker.Stop()
		if d.watcher != nil {
			d.watcher.Stop()
		}
		if d.server != nil {
			d.server.Stop()
		}
		d.wg.Wait()

		// Final lifecycle drain so nothing committed before shutdown waits
		// for the next watcher start.
		d.bridge.Deliver()
		d.bridge.UnregisterConsumer()

		d.cleanup()
		d.log(LogLevelInfo, "watcher stopped")
	})
}

func (d *Daemon) cleanup() {
	d.fileLock.Unlock()
	if d.logFile != nil {
		d.logFile.Close()
	}
}

func (d *Daemon) log(level LogLevel, format string, args ...any) {
	if level < d.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	d.logger.Printf("[%s] %s", levelStr, fmt.Sprintf(format, args...))
}
