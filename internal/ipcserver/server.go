// Package ipcserver is the thin HTTP router sitting in front of the
// Supervisor: every handler deserialises a request, calls one Supervisor
// (or Store/Registry) method, and maps the result back to JSON, the way
// every handler in the original implementation wrapped exactly one
// domain call.
package ipcserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sabachan/sabachan/internal/eventbus"
	"github.com/sabachan/sabachan/internal/store"
	"github.com/sabachan/sabachan/internal/supervisor"
)

// UpdaterAPI is the subset of the updater's background-worker surface the
// IPC server forwards to, so ipcserver can be built and tested before the
// updater binary exists. A nil UpdaterAPI makes the Updates endpoints
// report 501.
type UpdaterAPI interface {
	Statuses() (interface{}, error)
	CheckNow() (interface{}, error)
}

// Server bundles everything an IPC request needs: the Supervisor, the raw
// Store/Registry for instance CRUD that doesn't belong on Supervisor, the
// websocket hub, the client heartbeat registry, and the action tracer.
type Server struct {
	Router *mux.Router

	Supervisor *supervisor.Supervisor
	Store      *store.Store
	Bus        *eventbus.Bus // optional, nil disables NATS fan-out
	Updater    UpdaterAPI    // optional

	hub     *Hub
	clients *ClientRegistry
	tracer  *ActionTracer

	httpServer *http.Server
	shutdownCh chan struct{}
}

// New builds a Server and wires every route. Call Start to listen. The
// module registry is read through sup.Registry() so a RefreshModules
// call is visible to every handler without a second copy to keep in sync.
func New(sup *supervisor.Supervisor, st *store.Store, bus *eventbus.Bus) *Server {
	s := &Server{
		Supervisor: sup,
		Store:      st,
		Bus:        bus,
		hub:        NewHub(),
		clients:    NewClientRegistry(),
		tracer:     NewActionTracer(),
		shutdownCh: make(chan struct{}),
	}
	s.Router = mux.NewRouter()
	s.routes()
	go s.hub.Run()
	return s
}

func (s *Server) routes() {
	api := s.Router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/instances", s.handleListInstances).Methods(http.MethodGet)
	api.HandleFunc("/instance", s.handleCreateInstance).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}", s.handleGetInstance).Methods(http.MethodGet)
	api.HandleFunc("/instance/{id}", s.handleDeleteInstance).Methods(http.MethodDelete)
	api.HandleFunc("/instance/{id}", s.handlePatchInstance).Methods(http.MethodPatch)
	api.HandleFunc("/instances/reorder", s.handleReorderInstances).Methods(http.MethodPut)

	api.HandleFunc("/server/{name}/start", s.handleStartServer).Methods(http.MethodPost)
	api.HandleFunc("/server/{name}/stop", s.handleStopServer).Methods(http.MethodPost)
	api.HandleFunc("/server/{name}/status", s.handleServerStatus).Methods(http.MethodGet)
	api.HandleFunc("/servers", s.handleListServers).Methods(http.MethodGet)

	api.HandleFunc("/instance/{id}/command", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/rcon", s.handleRCON).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/rest", s.handleREST).Methods(http.MethodPost)

	api.HandleFunc("/instance/{id}/managed/start", s.handleManagedStart).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/console", s.handleConsole).Methods(http.MethodGet)
	api.HandleFunc("/instance/{id}/stdin", s.handleStdin).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/console/stream", s.handleConsoleStream)

	api.HandleFunc("/instance/{id}/properties", s.handleGetProperties).Methods(http.MethodGet)
	api.HandleFunc("/instance/{id}/properties", s.handlePutProperties).Methods(http.MethodPut)
	api.HandleFunc("/instance/{id}/properties/reset", s.handleResetProperties).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/accept-eula", s.handleAcceptEULA).Methods(http.MethodPost)

	api.HandleFunc("/instance/{id}/migration/scan", s.handleMigrationScan).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/migration/execute", s.handleMigrationExecute).Methods(http.MethodPost)

	api.HandleFunc("/instance/{id}/validate", s.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/diagnose", s.handleDiagnose).Methods(http.MethodPost)
	api.HandleFunc("/instance/{id}/activity", s.handleActivity).Methods(http.MethodGet)
	api.HandleFunc("/instance/{id}/metrics", s.handleInstanceMetrics).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)

	api.HandleFunc("/modules", s.handleListModules).Methods(http.MethodGet)
	api.HandleFunc("/module/{name}", s.handleGetModule).Methods(http.MethodGet)
	api.HandleFunc("/modules/refresh", s.handleRefreshModules).Methods(http.MethodPost)
	api.HandleFunc("/module/{name}/versions", s.handleModuleVersions).Methods(http.MethodGet)
	api.HandleFunc("/module/{name}/install", s.handleModuleInstall).Methods(http.MethodPost)

	api.HandleFunc("/client/register", s.handleClientRegister).Methods(http.MethodPost)
	api.HandleFunc("/client/{id}/heartbeat", s.handleClientHeartbeat).Methods(http.MethodPost)
	api.HandleFunc("/client/{id}/unregister", s.handleClientUnregister).Methods(http.MethodDelete)

	api.HandleFunc("/updates", s.handleUpdateStatuses).Methods(http.MethodGet)
	api.HandleFunc("/updates/check", s.handleUpdateCheck).Methods(http.MethodPost)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/shutdown", s.handleShutdown).Methods(http.MethodPost)

	s.Router.HandleFunc("/ws", s.handleWebSocket)
}

// Start begins listening and runs the client-heartbeat reaper until ctx
// is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	go s.clients.RunReaper(ctx, func(id string, botPID int) {
		log.Printf("[IPC] client %s expired (ttl), bot_pid=%d", id, botPID)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[IPC] listening on %s", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case <-s.shutdownCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
