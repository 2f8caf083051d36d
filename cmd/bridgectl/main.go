// bridgectl is the command-line surface of the action bridge: producers
// enqueue with it, the consumer watcher runs under it, and the control
// socket of a running watcher is reachable through it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adhanhq/actionbridge/internal/bridge"
	"github.com/adhanhq/actionbridge/internal/config"
	"github.com/adhanhq/actionbridge/internal/ctl"
	"github.com/adhanhq/actionbridge/internal/daemon"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "enqueue":
		runEnqueue(os.Args[2:])
	case "drain":
		runDrain(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "stop":
		runStop(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "purge":
		runPurge(os.Args[2:])
	case "version":
		fmt.Printf("bridgectl %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: bridgectl <command> [options]

commands:
  init      create the shared container and a default bridge.yaml
  enqueue   durably record one action and signal the watcher
  drain     drain pending actions (locally, or via a running watcher)
  watch     run the consumer watcher in the foreground
  status    query a running watcher
  stop      ask a running watcher to shut down
  migrate   convert a legacy single-blob queue, if present
  purge     remove stale staging files
  version   print version

options are listed by 'bridgectl <command> -h'.
`)
}

// defaultDir resolves the shared container: $ACTIONBRIDGE_DIR if set,
// otherwise ~/.actionbridge.
func defaultDir() string {
	if dir := os.Getenv("ACTIONBRIDGE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".actionbridge"
	}
	return filepath.Join(home, ".actionbridge")
}

func dirFlag(fs *flag.FlagSet) *string {
	return fs.String("dir", defaultDir(), "shared container directory")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openBridge(dir string) (*bridge.Bridge, config.Config) {
	cfg, err := config.Load(dir)
	if err != nil {
		fatalf("load config: %v", err)
	}
	b, err := bridge.New(dir, bridge.Options{
		StaleWindow: time.Duration(cfg.Queue.StaleWindowSec) * time.Second,
		Logger:      log.New(os.Stderr, "", log.LstdFlags),
	})
	if err != nil {
		fatalf("open bridge: %v", err)
	}
	return b, cfg
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	if err := config.Write(*dir, config.Default()); err != nil {
		fatalf("init: %v", err)
	}
	for _, sub := range []string{bridge.QueueDirName, bridge.LocksDirName, bridge.LogsDirName} {
		if err := os.MkdirAll(filepath.Join(*dir, sub), 0755); err != nil {
			fatalf("init: create %s: %v", sub, err)
		}
	}
	fmt.Printf("initialized %s\n", *dir)
}

func runEnqueue(args []string) {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	dir := dirFlag(fs)
	subject := fs.String("subject", "", "subject identifier (required)")
	source := fs.String("source", "cli", "provenance tag")
	at := fs.String("at", "", "completion time, RFC 3339 (default now)")
	fs.Parse(args)

	if *subject == "" {
		fatalf("enqueue: -subject is required")
	}

	when := time.Now()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fatalf("enqueue: parse -at: %v", err)
		}
		when = parsed
	}

	b, _ := openBridge(*dir)
	if !b.Enqueue(*subject, when, *source) {
		fatalf("enqueue failed; see log output above")
	}
	fmt.Printf("enqueued subject=%s\n", *subject)
}

func runDrain(args []string) {
	fs := flag.NewFlagSet("drain", flag.ExitOnError)
	dir := dirFlag(fs)
	remote := fs.Bool("remote", false, "drain through a running watcher instead of locally")
	fs.Parse(args)

	if *remote {
		resp, err := ctl.NewClient(filepath.Join(*dir, ctl.SocketName)).SendCommand("drain", nil)
		if err != nil {
			fatalf("drain: %v", err)
		}
		if !resp.Success {
			fatalf("drain: %s: %s", resp.Error.Code, resp.Error.Message)
		}
		fmt.Printf("%s\n", resp.Data)
		return
	}

	b, _ := openBridge(*dir)
	b.Migrate()
	actions := b.Drain()

	enc := json.NewEncoder(os.Stdout)
	for _, a := range actions {
		if err := enc.Encode(a); err != nil {
			fatalf("drain: encode: %v", err)
		}
	}
	fmt.Fprintf(os.Stderr, "drained %d action(s)\n", len(actions))
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	cfg, err := config.Load(*dir)
	if err != nil {
		fatalf("load config: %v", err)
	}

	d, err := daemon.New(*dir, cfg)
	if err != nil {
		fatalf("watch: %v", err)
	}
	if err := d.Run(); err != nil {
		fatalf("watch: %v", err)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	resp, err := ctl.NewClient(filepath.Join(*dir, ctl.SocketName)).SendCommand("status", nil)
	if err != nil {
		fatalf("status: %v", err)
	}
	if !resp.Success {
		fatalf("status: %s: %s", resp.Error.Code, resp.Error.Message)
	}

	var st daemon.Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		fatalf("status: decode: %v", err)
	}
	fmt.Printf("pid:        %d\n", st.PID)
	fmt.Printf("uptime:     %ds\n", st.UptimeSec)
	fmt.Printf("pending:    %d\n", st.Pending)
	fmt.Printf("delivered:  %d\n", st.DeliveredTotal)
	if st.LastDrainUnix > 0 {
		fmt.Printf("last drain: %s\n", time.Unix(st.LastDrainUnix, 0).Format(time.RFC3339))
	}
}

func runStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	resp, err := ctl.NewClient(filepath.Join(*dir, ctl.SocketName)).SendCommand("shutdown", nil)
	if err != nil {
		fatalf("stop: %v", err)
	}
	if !resp.Success {
		fatalf("stop: %s: %s", resp.Error.Code, resp.Error.Message)
	}
	fmt.Println("shutdown requested")
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := dirFlag(fs)
	fs.Parse(args)

	b, _ := openBridge(*dir)
	b.Migrate()

	pending, err := b.Pending()
	if err != nil {
		fatalf("migrate: %v", err)
	}
	fmt.Printf("migration complete; %d action(s) pending\n", pending)
}

func runPurge(args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	dir := dirFlag(fs)
	olderThan := fs.Duration("older-than", 0, "override the staging expiration window (e.g. 30m)")
	fs.Parse(args)

	b, cfg := openBridge(*dir)
	window := time.Duration(cfg.Queue.StaleWindowSec) * time.Second
	if *olderThan > 0 {
		window = *olderThan
	}

	removed, err := b.PurgeStale(window)
	if err != nil {
		fatalf("purge: %v", err)
	}
	fmt.Printf("removed %d stale staging file(s)\n", removed)
}
