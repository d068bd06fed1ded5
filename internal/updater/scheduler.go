package updater

import (
	"log"

	"github.com/robfig/cron/v3"
)

// AutoCheckScheduler runs the worker's version check on a cron
// schedule, replacing the original implementation's interval-hours
// ticker with a declarative cron expression ("0 * * * *" for hourly).
type AutoCheckScheduler struct {
	worker   *Worker
	cron     *cron.Cron
	schedule string
	entryID  cron.EntryID
}

// NewAutoCheckScheduler builds a scheduler against worker; call Start to
// begin running schedule (a standard 5-field cron expression).
func NewAutoCheckScheduler(worker *Worker, schedule string) *AutoCheckScheduler {
	return &AutoCheckScheduler{worker: worker, cron: cron.New(), schedule: schedule}
}

// Start registers the schedule and begins the cron's own goroutine. A
// no-op if schedule is empty (auto-check disabled).
func (s *AutoCheckScheduler) Start() error {
	if s.schedule == "" {
		log.Print("[updater] auto-check disabled")
		return nil
	}
	id, err := s.cron.AddFunc(s.schedule, func() {
		log.Print("[updater] auto-check triggered")
		if err := s.worker.CheckNow(); err != nil {
			log.Printf("[updater] failed to submit auto-check: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	log.Printf("[updater] auto-check started (schedule %q)", s.schedule)
	return nil
}

// Stop halts the scheduler without waiting for an in-flight check.
func (s *AutoCheckScheduler) Stop() {
	s.cron.Stop()
	log.Print("[updater] auto-check stopped")
}

// UpdateSchedule stops and restarts the scheduler with a new cron
// expression.
func (s *AutoCheckScheduler) UpdateSchedule(schedule string) error {
	s.Stop()
	s.cron = cron.New()
	s.schedule = schedule
	return s.Start()
}
