package updater

import (
	"fmt"
	"log"
	"sync"
)

// eventSubscriberBuffer bounds how many events a slow subscriber (the
// daemon forwarding to the NATS event bus) can fall behind before events
// start being dropped for it; fan-out is lossy the same way the console
// broadcast in internal/process is.
const eventSubscriberBuffer = 64

// taskKind discriminates the work a Worker's background loop can be
// asked to do.
type taskKind string

const (
	taskCheckVersion       taskKind = "check_version"
	taskDownloadComponent  taskKind = "download_component"
	taskDownloadAll        taskKind = "download_all"
	taskShutdown           taskKind = "shutdown"
)

type task struct {
	kind      taskKind
	manual    bool
	component Component
}

// EventKind discriminates a WorkerEvent.
type EventKind string

const (
	EventCheckStarted          EventKind = "check_started"
	EventCheckCompleted        EventKind = "check_completed"
	EventCheckFailed           EventKind = "check_failed"
	EventDownloadStarted       EventKind = "download_started"
	EventDownloadCompleted     EventKind = "download_completed"
	EventDownloadFailed        EventKind = "download_failed"
	EventAllDownloadsCompleted EventKind = "all_downloads_completed"
	EventUpdateNotification    EventKind = "update_notification"
	EventWorkerShutdown        EventKind = "worker_shutdown"
)

// WorkerEvent is one notification the background worker emits; GUI/CLI
// clients (and, here, the daemon, which forwards each event to the NATS
// event bus) subscribe to the stream rather than polling Status.
type WorkerEvent struct {
	Kind             EventKind
	Error            string
	Component        string
	UpdatesAvailable int
	Components       []ComponentVersion
	Title            string
	Message          string
	UpdateCount      int
	Count            int
}

// Status is the Worker's current activity, polled by /api/updates.
type Status struct {
	Busy        bool
	CurrentTask string
	LastCheck   string
	NextCheck   string
}

// Worker runs update checks and downloads on its own goroutine so IPC
// handlers never block on a GitHub round trip; callers submit tasks and
// subscribe to the resulting events instead of waiting on a call.
type Worker struct {
	manager *UpdateManager

	tasks chan task

	subsMu      sync.Mutex
	subscribers map[chan WorkerEvent]struct{}

	statusMu sync.RWMutex
	status   Status

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorker builds a Worker around manager and starts its loop goroutine.
func NewWorker(manager *UpdateManager) *Worker {
	w := &Worker{
		manager:     manager,
		tasks:       make(chan task, 32),
		subscribers: make(map[chan WorkerEvent]struct{}),
		stopped:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// CheckNow requests a manual version check.
func (w *Worker) CheckNow() error {
	return w.submit(task{kind: taskCheckVersion, manual: true})
}

// DownloadAll requests every pending component be downloaded.
func (w *Worker) DownloadAll() error {
	return w.submit(task{kind: taskDownloadAll})
}

// DownloadComponent requests one component be downloaded.
func (w *Worker) DownloadComponent(c Component) error {
	return w.submit(task{kind: taskDownloadComponent, component: c})
}

// Shutdown stops the worker's loop goroutine. Safe to call more than once.
func (w *Worker) Shutdown() {
	w.stopOnce.Do(func() {
		w.tasks <- task{kind: taskShutdown}
	})
}

func (w *Worker) submit(t task) error {
	select {
	case w.tasks <- t:
		return nil
	default:
		return fmt.Errorf("updater: worker task queue full")
	}
}

// Subscribe registers a channel for every event the worker emits. Call
// the returned func to unsubscribe.
func (w *Worker) Subscribe() (<-chan WorkerEvent, func()) {
	ch := make(chan WorkerEvent, eventSubscriberBuffer)
	w.subsMu.Lock()
	w.subscribers[ch] = struct{}{}
	w.subsMu.Unlock()

	return ch, func() {
		w.subsMu.Lock()
		delete(w.subscribers, ch)
		w.subsMu.Unlock()
		close(ch)
	}
}

// Status returns the worker's current activity snapshot.
func (w *Worker) Status() Status {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	return w.status
}

func (w *Worker) emit(ev WorkerEvent) {
	w.subsMu.Lock()
	for ch := range w.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	w.subsMu.Unlock()
}

func (w *Worker) setBusy(current string) {
	w.statusMu.Lock()
	w.status.Busy = current != ""
	w.status.CurrentTask = current
	w.statusMu.Unlock()
}

func (w *Worker) loop() {
	log.Print("[updater] background worker started")
	defer close(w.stopped)

	for t := range w.tasks {
		switch t.kind {
		case taskShutdown:
			w.emit(WorkerEvent{Kind: EventWorkerShutdown})
			log.Print("[updater] background worker stopped")
			return
		case taskCheckVersion:
			w.handleCheckVersion(t.manual)
		case taskDownloadComponent:
			w.handleDownloadComponent(t.component)
		case taskDownloadAll:
			w.handleDownloadAll()
		}
	}
}

func (w *Worker) handleCheckVersion(manual bool) {
	w.setBusy("Checking for updates...")
	w.emit(WorkerEvent{Kind: EventCheckStarted})
	log.Printf("[updater] starting version check (manual=%v)", manual)

	status, err := w.manager.CheckForUpdates()
	if err != nil {
		w.emit(WorkerEvent{Kind: EventCheckFailed, Error: err.Error()})
		log.Printf("[updater] check failed: %v", err)
		w.setBusy("")
		return
	}

	var pending []ComponentVersion
	for _, cv := range status.Components {
		if cv.UpdateAvailable {
			pending = append(pending, cv)
		}
	}

	w.statusMu.Lock()
	w.status.LastCheck = status.LastCheck
	w.status.NextCheck = status.NextCheck
	w.statusMu.Unlock()

	w.emit(WorkerEvent{Kind: EventCheckCompleted, UpdatesAvailable: len(pending), Components: status.Components})

	if len(pending) > 0 {
		names := make([]string, len(pending))
		for i, cv := range pending {
			names[i] = cv.Component.DisplayName()
		}
		w.emit(WorkerEvent{
			Kind:        EventUpdateNotification,
			Title:       fmt.Sprintf("%d update(s) available", len(pending)),
			Message:     joinNames(names),
			UpdateCount: len(pending),
		})
	}

	log.Printf("[updater] check completed: %d update(s) available", len(pending))
	w.setBusy("")
}

func (w *Worker) handleDownloadComponent(c Component) {
	name := c.DisplayName()
	w.setBusy(fmt.Sprintf("Downloading %s...", name))
	w.emit(WorkerEvent{Kind: EventDownloadStarted, Component: name})
	log.Printf("[updater] starting download: %s", name)

	if err := w.manager.DownloadComponent(c); err != nil {
		w.emit(WorkerEvent{Kind: EventDownloadFailed, Component: name, Error: err.Error()})
		log.Printf("[updater] download failed for %s: %v", name, err)
	} else {
		w.emit(WorkerEvent{Kind: EventDownloadCompleted, Component: name})
		log.Printf("[updater] download completed: %s", name)
	}
	w.setBusy("")
}

func (w *Worker) handleDownloadAll() {
	w.setBusy("Downloading all updates...")
	log.Print("[updater] starting download all")

	downloaded, err := w.manager.DownloadAvailableUpdates()
	if err != nil {
		w.emit(WorkerEvent{Kind: EventDownloadFailed, Component: "all", Error: err.Error()})
		log.Printf("[updater] download all failed: %v", err)
		w.setBusy("")
		return
	}

	for _, name := range downloaded {
		w.emit(WorkerEvent{Kind: EventDownloadCompleted, Component: name})
	}
	w.emit(WorkerEvent{Kind: EventAllDownloadsCompleted, Count: len(downloaded)})
	log.Printf("[updater] all downloads completed: %d component(s)", len(downloaded))
	w.setBusy("")
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
