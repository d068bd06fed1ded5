// Package supervisor is the heart of saba-chan: it owns the Instance
// Store, the process Tracker, the managed-process runtime, and the
// Module Registry, and presents to the IPC layer the operations an
// operator may perform on a configured instance.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sabachan/sabachan/internal/activity"
	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/metrics"
	"github.com/sabachan/sabachan/internal/notifications"
	"github.com/sabachan/sabachan/internal/notifyevent"
	"github.com/sabachan/sabachan/internal/process"
	"github.com/sabachan/sabachan/internal/properties"
	"github.com/sabachan/sabachan/internal/protocol"
	"github.com/sabachan/sabachan/internal/registry"
	"github.com/sabachan/sabachan/internal/store"
	"github.com/sabachan/sabachan/internal/tracker"
	"github.com/sabachan/sabachan/internal/types"
)

// stopGrace is how long Supervisor waits after asking a server to stop
// gracefully before escalating to an OS kill.
const stopGrace = 10 * time.Second

// Supervisor wires together every collaborator behind one coarse lock.
// Read-only queries take the store/registry's own locks; Supervisor adds
// no additional locking beyond what each collaborator already owns,
// matching the original's single-struct-guards-everything discipline
// without introducing a second lock to get wrong.
type Supervisor struct {
	Store    *store.Store
	Tracker  *tracker.Tracker
	Procs    *process.Store
	Activity *activity.Log // optional, nil disables audit logging
	Metrics  *metrics.MetricsCollector
	Alerts   *metrics.AlertChecker
	Notifier *notifications.Router  // optional, nil disables external notifications
	Desktop  *notifications.Manager // optional, nil disables local toast/terminal/banner notifications

	reg        atomic.Pointer[registry.Registry]
	modulesDir string
}

// New builds a Supervisor. activityLog may be nil.
func New(st *store.Store, reg *registry.Registry, modulesDir string, activityLog *activity.Log) *Supervisor {
	s := &Supervisor{
		Store:      st,
		Tracker:    tracker.New(),
		Procs:      process.NewStore(),
		Activity:   activityLog,
		Metrics:    metrics.NewCollector(),
		Alerts:     metrics.NewAlertEngine(types.DefaultThresholds()),
		Desktop:    notifications.NewDefaultManager(),
		modulesDir: modulesDir,
	}
	s.reg.Store(reg)
	return s
}

// Registry returns the currently-loaded Module Registry. RefreshModules
// swaps this atomically, so a handler reading it mid-refresh still sees a
// fully-formed Registry, never a half-built one.
func (s *Supervisor) Registry() *registry.Registry {
	return s.reg.Load()
}

func (s *Supervisor) record(instanceID, action, details string) {
	if s.Activity == nil {
		return
	}
	if err := s.Activity.Record(instanceID, action, details); err != nil {
		log.Printf("[SUPERVISOR] activity record failed: %v", err)
	}
}

// notify fans a lifecycle event out to every configured external channel.
// A nil Notifier makes this a no-op, same as record with a nil Activity.
func (s *Supervisor) notify(instanceID, instanceName string, eventType notifyevent.EventType, priority int, payload map[string]interface{}) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Route(*notifyevent.New(eventType, instanceID, instanceName, priority, payload))
}

// RunAlertLoop polls the metrics collector and instance store on interval
// and routes every threshold breach through Notifier, until ctx is
// cancelled. Safe to run even with a nil Notifier (alerts are still
// logged).
func (s *Supervisor) RunAlertLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAlerts()
		}
	}
}

func (s *Supervisor) checkAlerts() {
	instances := make(map[string]*types.Instance)
	for _, inst := range s.Store.List() {
		instances[inst.ID] = inst
	}

	alerts := s.Alerts.CheckMetrics(s.Metrics.GetAllMetrics())
	alerts = append(alerts, s.Alerts.CheckInstanceStatus(instances)...)
	// StartServer/StopServer run synchronously, so there is no request
	// backlog to sample here; CheckQueueDepth is wired for a future
	// async dispatch path and is a no-op at pendingCount 0.

	for _, a := range alerts {
		log.Printf("[SUPERVISOR] alert: %s severity=%s instance=%s: %s", a.Type, a.Severity, a.InstanceID, a.Message)

		if a.Severity == "critical" && s.Desktop != nil {
			if err := s.Desktop.NotifyInstanceAlert(a.Message); err != nil {
				log.Printf("[SUPERVISOR] desktop notification failed: %v", err)
			}
		}

		if s.Notifier == nil {
			continue
		}
		priority := notifyevent.PriorityNormal
		if a.Severity == "critical" {
			priority = notifyevent.PriorityCritical
		}
		s.Notifier.Route(*notifyevent.New(notifyevent.EventAlertRaised, a.InstanceID, a.InstanceID, priority, map[string]interface{}{
			"alert_type": a.Type,
			"message":    a.Message,
			"severity":   a.Severity,
		}))
	}
}

// resolve looks up an instance by name and its module, the pattern every
// lifecycle/dispatch operation starts with.
func (s *Supervisor) resolve(name string) (*types.Instance, *registry.Module, error) {
	inst, err := s.Store.GetByName(name)
	if err != nil {
		return nil, nil, err
	}
	mod, ok := s.Registry().GetModule(inst.ModuleName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: module %q for instance %q", apierr.ErrNotFound, inst.ModuleName, name)
	}
	return inst, mod, nil
}

// StartServer transitions an instance from stopped to running.
func (s *Supervisor) StartServer(ctx context.Context, name string) (*types.Instance, error) {
	inst, mod, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	if s.Tracker.IsTracked(inst.ID) {
		return nil, fmt.Errorf("%w: instance %q is already running", apierr.ErrAlreadyRunning, name)
	}

	execPath := inst.ExecutablePath
	if execPath == "" {
		execPath = mod.ExecutablePath
	}
	if execPath == "" {
		return nil, fmt.Errorf("%w: instance %q has no executable_path", apierr.ErrValidation, name)
	}
	if _, err := os.Stat(execPath); err != nil {
		return nil, fmt.Errorf("%w: executable %s: %v", apierr.ErrValidation, execPath, err)
	}

	workingDir := inst.WorkingDir
	if workingDir == "" {
		workingDir = filepath.Dir(execPath)
		updated, err := s.Store.Update(inst.ID, func(i *types.Instance) {
			i.WorkingDir = workingDir
		})
		if err != nil {
			return nil, err
		}
		inst = updated
	}

	if err := s.ensureRCONPassword(inst); err != nil {
		return nil, err
	}

	var pid int
	if inst.Protocol.IsManagedStdin() || inst.ManagedStart {
		args := renderArgs(mod.Start.Args, inst)
		env := renderEnv(mod.Start.Env, inst)
		mp, err := process.Spawn(ctx, inst.ID, execPath, workingDir, args, env)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apierr.ErrProtocol, err)
		}
		s.Procs.Insert(mp)
		pid = mp.PID()
		go s.watchForCrash(inst.ID, mp)
	}

	s.Tracker.Track(inst.ID, pid)

	updated, err := s.Store.Update(inst.ID, func(i *types.Instance) {
		i.Status = types.StatusRunning
		i.PID = pid
		i.LastStartedAt = time.Now()
	})
	if err != nil {
		s.Tracker.Untrack(inst.ID)
		return nil, err
	}

	s.Metrics.UpdateInstanceMetrics(inst.ID, &types.InstanceMetrics{
		InstanceID: inst.ID,
		StartedAt:  updated.LastStartedAt,
	})
	s.Metrics.SetInstanceActive(inst.ID)

	s.record(inst.ID, "start", fmt.Sprintf("pid=%d", pid))
	s.notify(inst.ID, inst.Name, notifyevent.EventInstanceStarted, notifyevent.PriorityLow, map[string]interface{}{"pid": pid})
	log.Printf("[SUPERVISOR] %s: started (pid=%d)", name, pid)
	return updated, nil
}

// watchForCrash waits for a managed process to exit on its own and, if the
// Store still shows it running a moment later (i.e. StopServer never ran),
// marks the instance crashed and records it in the metrics collector.
func (s *Supervisor) watchForCrash(instanceID string, mp *process.ManagedProcess) {
	<-mp.Done()
	time.Sleep(200 * time.Millisecond) // let an in-flight StopServer finish its own transition first

	inst, err := s.Store.Get(instanceID)
	if err != nil || inst.Status != types.StatusRunning {
		return
	}

	s.Tracker.Untrack(instanceID)
	s.Procs.Remove(instanceID)
	_, _ = s.Store.Update(instanceID, func(i *types.Instance) {
		i.Status = types.StatusCrashed
		i.PID = 0
	})

	s.Metrics.IncrementCrashCount(instanceID)
	s.record(instanceID, "crash", fmt.Sprintf("exit_err=%v", mp.ExitErr()))
	s.notify(instanceID, inst.Name, notifyevent.EventInstanceCrashed, notifyevent.PriorityCritical, map[string]interface{}{"exit_err": fmt.Sprintf("%v", mp.ExitErr())})
	if s.Desktop != nil {
		if err := s.Desktop.NotifyInstanceAlert(fmt.Sprintf("%s crashed unexpectedly", inst.Name)); err != nil {
			log.Printf("[SUPERVISOR] desktop notification failed: %v", err)
		}
	}
	log.Printf("[SUPERVISOR] %s: crashed unexpectedly", instanceID)
}

// StopServer transitions an instance from running to stopped.
func (s *Supervisor) StopServer(ctx context.Context, name string, force bool) (*types.Instance, error) {
	inst, mod, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	if !s.Tracker.IsTracked(inst.ID) {
		return nil, fmt.Errorf("%w: instance %q is not running", apierr.ErrNotRunning, name)
	}

	if mp, ok := s.Procs.Get(inst.ID); ok {
		stopCmd := mod.Start.StopCmd
		if force {
			stopCmd = ""
		}
		timeout := stopGrace
		if force {
			timeout = 0
		}
		if err := mp.Stop(stopCmd, timeout); err != nil {
			return nil, fmt.Errorf("%w: %v", apierr.ErrProtocol, err)
		}
		s.Procs.Remove(inst.ID)
	} else {
		// externally-tracked PID (no managed stdio) — dispatch the
		// module's documented stop command over its protocol, then
		// escalate to an OS kill if requested.
		if mod.Start.StopCmd != "" && !force {
			_, _ = s.dispatchProtocol(inst, mod, types.ServerCommand{Raw: mod.Start.StopCmd})
		}
		if force {
			if pid, err := s.Tracker.GetPID(inst.ID); err == nil && pid > 0 {
				_ = process.KillPID(pid)
			}
		}
	}

	s.Tracker.Untrack(inst.ID)
	updated, err := s.Store.Update(inst.ID, func(i *types.Instance) {
		i.Status = types.StatusStopped
		i.PID = 0
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.SetInstanceIdle(inst.ID)

	s.record(inst.ID, "stop", fmt.Sprintf("force=%v", force))
	s.notify(inst.ID, inst.Name, notifyevent.EventInstanceStopped, notifyevent.PriorityLow, map[string]interface{}{"force": force})
	log.Printf("[SUPERVISOR] %s: stopped (force=%v)", name, force)
	return updated, nil
}

// RestartServer stops (tolerating "not running") then starts.
func (s *Supervisor) RestartServer(ctx context.Context, name string, force bool) (*types.Instance, error) {
	if _, err := s.StopServer(ctx, name, force); err != nil && !errors.Is(err, apierr.ErrNotRunning) {
		return nil, err
	}
	inst, err := s.StartServer(ctx, name)
	if err != nil {
		return nil, err
	}
	updated, err := s.Store.Update(inst.ID, func(i *types.Instance) {
		i.RestartCount++
	})
	if err != nil {
		return inst, nil //nolint:nilerr // restart itself already succeeded
	}
	s.Metrics.IncrementRestartCount(inst.ID)
	s.record(inst.ID, "restart", "")
	return updated, nil
}

// ExecuteCommand dispatches a command by the module's declared method:
// lifecycle commands go through the methods above, everything else goes
// through stdin/rcon/rest/dual per the command's schema entry.
func (s *Supervisor) ExecuteCommand(ctx context.Context, name, command string, args []string) (types.ServerResponse, error) {
	inst, mod, err := s.resolve(name)
	if err != nil {
		return types.ServerResponse{}, err
	}

	canonical, ok := s.Registry().ResolveCommand(mod.Name, command)
	if !ok {
		if registry.IsLifecycleCommand(strings.ToLower(command)) {
			canonical = strings.ToLower(command)
		} else {
			return types.ServerResponse{}, fmt.Errorf("%w: unknown command %q for module %q", apierr.ErrNotFound, command, mod.Name)
		}
	}

	switch canonical {
	case "start":
		_, err := s.StartServer(ctx, name)
		return types.ServerResponse{OK: err == nil}, err
	case "stop":
		_, err := s.StopServer(ctx, name, false)
		return types.ServerResponse{OK: err == nil}, err
	case "restart":
		_, err := s.RestartServer(ctx, name, false)
		return types.ServerResponse{OK: err == nil}, err
	case "status":
		return types.ServerResponse{OK: true, Output: string(inst.Status)}, nil
	}

	cmdDef, ok := s.Registry().GetCommandDef(mod.Name, canonical)
	if !ok {
		return types.ServerResponse{}, fmt.Errorf("%w: command %q has no schema in module %q", apierr.ErrNotFound, canonical, mod.Name)
	}

	cmd := types.ServerCommand{Name: canonical, Args: args, Raw: strings.Join(append([]string{canonical}, args...), " ")}

	switch cmdDef.Method {
	case "stdin":
		mp, ok := s.Procs.Get(inst.ID)
		if !ok {
			return types.ServerResponse{}, fmt.Errorf("%w: instance %q has no managed process", apierr.ErrNotRunning, name)
		}
		if err := mp.SendStdin(cmd.Raw); err != nil {
			return types.ServerResponse{}, fmt.Errorf("%w: %v", apierr.ErrProtocol, err)
		}
		return types.ServerResponse{OK: true, Protocol: types.ProtocolManaged}, nil
	case "rcon", "rest", "dual":
		return s.dispatchProtocol(inst, mod, cmd)
	default:
		return types.ServerResponse{}, fmt.Errorf("%w: unknown dispatch method %q", apierr.ErrValidation, cmdDef.Method)
	}
}

// SendRaw dispatches cmd straight to an instance's protocol client,
// bypassing command-schema resolution. forcedProtocol overrides the
// instance's own protocol_mode for this one call (used by the IPC
// server's /rcon and /rest endpoints on dual-mode instances); pass "" to
// respect the instance's configured protocol.
func (s *Supervisor) SendRaw(ctx context.Context, name string, forcedProtocol types.ProtocolKind, cmd types.ServerCommand) (types.ServerResponse, error) {
	inst, mod, err := s.resolve(name)
	if err != nil {
		return types.ServerResponse{}, err
	}
	if forcedProtocol == "" {
		return s.dispatchProtocol(inst, mod, cmd)
	}
	override := *inst
	override.Protocol = forcedProtocol
	return s.dispatchProtocol(&override, mod, cmd)
}

// dispatchProtocol builds the right client for the instance (rcon / rest,
// "dual" prefers rcon when a password is configured) and sends cmd.
func (s *Supervisor) dispatchProtocol(inst *types.Instance, mod *registry.Module, cmd types.ServerCommand) (types.ServerResponse, error) {
	useRCON := inst.Protocol == types.ProtocolRCON || (inst.Protocol != types.ProtocolREST && inst.RCONPassword != "")

	var client protocol.Client
	if useRCON {
		addr := fmt.Sprintf("127.0.0.1:%d", inst.RCONPort)
		client = protocol.NewRCONClient(addr, inst.RCONPassword)
	} else {
		client = protocol.NewRESTClient(inst.RESTBaseURL, inst.RESTUsername, inst.RESTPassword)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Send(ctx, cmd)
}

// ensureRCONPassword auto-generates and persists an RCON password the
// first time an RCON-capable instance is started without one.
func (s *Supervisor) ensureRCONPassword(inst *types.Instance) error {
	if (inst.Protocol != types.ProtocolRCON && inst.Protocol != types.ProtocolDual) || inst.RCONPassword != "" {
		return nil
	}
	updated, err := s.Store.Update(inst.ID, func(i *types.Instance) {
		i.RCONPassword = types.NewRCONPassword()
	})
	if err != nil {
		return err
	}
	inst.RCONPassword = updated.RCONPassword

	if _, err := properties.Write(inst.WorkingDir, map[string]string{
		"rcon.password": inst.RCONPassword,
		"enable-rcon":   "true",
	}); err != nil {
		log.Printf("[SUPERVISOR] %s: write-through rcon password failed: %v", inst.Name, err)
	}
	return nil
}

// ListModules returns every module the registry discovered.
func (s *Supervisor) ListModules() []registry.Module {
	names := s.Registry().ModuleNames()
	out := make([]registry.Module, 0, len(names))
	for _, n := range names {
		if m, ok := s.Registry().GetModule(n); ok {
			out = append(out, *m)
		}
	}
	return out
}

// RefreshModules re-scans the modules directory and swaps in a fresh
// Registry, so module.toml edits on disk take effect without a restart.
func (s *Supervisor) RefreshModules() []registry.Module {
	s.reg.Store(registry.Load(s.modulesDir))
	log.Printf("[SUPERVISOR] modules refreshed: %v", s.Registry().ModuleNames())
	return s.ListModules()
}

// renderArgs fills {{placeholders}} in a module's start-profile argv
// template from the instance's fixed fields and free-form settings.
func renderArgs(template []string, inst *types.Instance) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = renderPlaceholders(arg, inst)
	}
	return out
}

func renderEnv(template map[string]string, inst *types.Instance) []string {
	out := make([]string, 0, len(template))
	for k, v := range template {
		out = append(out, k+"="+renderPlaceholders(v, inst))
	}
	return out
}

func renderPlaceholders(s string, inst *types.Instance) string {
	replacer := strings.NewReplacer(
		"{{port}}", strconv.Itoa(inst.Port),
		"{{working_dir}}", inst.WorkingDir,
		"{{name}}", inst.Name,
	)
	s = replacer.Replace(s)
	for k, v := range inst.Settings {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}
