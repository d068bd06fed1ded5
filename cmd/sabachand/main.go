// Command sabachand is the saba-chan daemon: it owns the Supervisor, the
// instance store, the embedded NATS event bus, the background updater
// worker, and the IPC HTTP/WebSocket server the dashboard and CLI talk to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sabachan/sabachan/internal/activity"
	"github.com/sabachan/sabachan/internal/eventbus"
	"github.com/sabachan/sabachan/internal/instance"
	"github.com/sabachan/sabachan/internal/ipcserver"
	"github.com/sabachan/sabachan/internal/notifications"
	"github.com/sabachan/sabachan/internal/registry"
	"github.com/sabachan/sabachan/internal/store"
	"github.com/sabachan/sabachan/internal/supervisor"
	"github.com/sabachan/sabachan/internal/updater"
)

func main() {
	port := flag.Int("port", 7717, "IPC HTTP server port")
	natsPort := flag.Int("nats-port", 0, "embedded NATS port (0 picks any free port)")
	dataDir := flag.String("data-dir", "data", "directory for instances.json, activity.db and module cache")
	modulesDir := flag.String("modules-dir", "modules", "directory containing module.toml manifests")
	updateOwner := flag.String("update-repo-owner", "", "GitHub owner/org to check for updates (empty disables the updater)")
	updateRepo := flag.String("update-repo-name", "", "GitHub repo name to check for updates")
	updateSchedule := flag.String("update-schedule", "", "cron expression for automatic update checks (empty disables)")
	alertInterval := flag.Duration("alert-interval", 30*time.Second, "how often to check instance metrics against alert thresholds")
	stop := flag.Bool("stop", false, "stop the running daemon instance gracefully")
	status := flag.Bool("status", false, "show status of the running daemon instance")
	flag.Parse()

	basePath, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine working directory: %v\n", err)
		os.Exit(1)
	}
	if !filepath.IsAbs(*dataDir) {
		*dataDir = filepath.Join(basePath, *dataDir)
	}
	if !filepath.IsAbs(*modulesDir) {
		*modulesDir = filepath.Join(basePath, *modulesDir)
	}

	pidFilePath := filepath.Join(*dataDir, "sabachand.pid")
	instanceMgr := instance.NewManager(pidFilePath, filepath.Join(*dataDir, "instances.json"), *port)

	if *status {
		showStatus(instanceMgr)
		return
	}
	if *stop {
		stopDaemon(instanceMgr)
		return
	}

	existing, err := instanceMgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to check for an existing instance: %v\n", err)
		os.Exit(1)
	}
	if existing != nil && existing.IsRunning {
		fmt.Fprintf(os.Stderr, "sabachand is already running (pid %d, port %d)\n", existing.PID, existing.Port)
		os.Exit(1)
	}

	if err := instanceMgr.AcquireLock(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to acquire instance lock: %v\n", err)
		os.Exit(1)
	}
	defer instanceMgr.ReleaseLock()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(filepath.Join(*dataDir, "instances.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open instance store: %v\n", err)
		os.Exit(1)
	}

	activityLog, err := activity.Open(filepath.Join(*dataDir, "activity.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open activity log: %v\n", err)
		os.Exit(1)
	}
	defer activityLog.Close()

	reg := registry.Load(*modulesDir)

	bus, err := eventbus.Start(*natsPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: embedded event bus failed to start: %v\n", err)
		bus = nil
	}
	if bus != nil {
		defer bus.Close()
	}

	sup := supervisor.New(st, reg, *modulesDir, activityLog)

	notifyConfig := notifications.LoadConfig(filepath.Join(basePath, "configs", "notifications.yaml"))
	sup.Notifier = notifications.BuildRouter(notifyConfig)

	ipc := ipcserver.New(sup, st, bus)

	if *updateOwner != "" && *updateRepo != "" {
		installRoot := filepath.Dir(basePath)
		staging := filepath.Join(*dataDir, "update-staging")
		manager := updater.NewUpdateManager(*updateOwner, *updateRepo, installRoot, staging, nil)
		worker := updater.NewWorker(manager)
		defer worker.Shutdown()

		if bus != nil {
			events, unsubscribe := worker.Subscribe()
			defer unsubscribe()
			go func() {
				for ev := range events {
					bus.PublishUpdaterEvent(ev)
				}
			}()
		}

		scheduler := updater.NewAutoCheckScheduler(worker, *updateSchedule)
		if err := scheduler.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: update scheduler failed to start: %v\n", err)
		} else {
			defer scheduler.Stop()
		}

		ipc.Updater = updater.NewAPIBridge(worker)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go sup.RunAlertLoop(ctx, *alertInterval)

	addr := fmt.Sprintf(":%d", *port)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- ipc.Start(ctx, addr)
	}()

	// Wait for the listener to actually bind before writing the PID file,
	// so a racing CheckExistingInstance never sees a PID file pointing at
	// a daemon that hasn't opened its port yet.
	if !waitForBind(*port, serverErr) {
		fmt.Fprintln(os.Stderr, "sabachand failed to become ready within timeout")
		os.Exit(1)
	}

	if err := instanceMgr.WritePIDFile(os.Getpid(), *port, basePath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write PID file: %v\n", err)
	}
	defer instanceMgr.RemovePIDFile()

	fmt.Printf("sabachand listening on %s\n", addr)

	if err := <-serverErr; err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "ipc server exited: %v\n", err)
		os.Exit(1)
	}
}

func waitForBind(port int, serverErr <-chan error) bool {
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		select {
		case err := <-serverErr:
			fmt.Fprintf(os.Stderr, "ipc server failed to start: %v\n", err)
			return false
		default:
		}
		if !instance.IsPortAvailable(port) {
			return true
		}
	}
	return false
}

func showStatus(mgr *instance.InstanceManager) {
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to check instance status: %v\n", err)
		os.Exit(1)
	}
	if info == nil {
		fmt.Println("sabachand is not running")
		return
	}
	fmt.Printf("sabachand is running: pid=%d port=%d responding=%v started=%s\n",
		info.PID, info.Port, info.IsResponding, info.StartTime.Format(time.RFC3339))
}

func stopDaemon(mgr *instance.InstanceManager) {
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to check instance status: %v\n", err)
		os.Exit(1)
	}
	if info == nil {
		fmt.Println("sabachand is not running")
		return
	}
	if err := instance.SendShutdownRequest(info.Port); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown request failed, killing pid %d: %v\n", info.PID, err)
		if err := instance.KillProcess(info.PID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to kill pid %d: %v\n", info.PID, err)
			os.Exit(1)
		}
	}
	fmt.Println("sabachand stopped")
}
