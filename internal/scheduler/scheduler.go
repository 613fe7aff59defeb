// Package scheduler posts configured relay commands into the agent loop on a
// cron schedule. Scheduled commands go through the same handler as remote
// ones, so the settle lockout applies to them as well.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/logging"
)

// Entry is an active schedule.
type Entry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler manages all cron-related tasks.
type Scheduler struct {
	cron           *cron.Cron
	store          map[cron.EntryID]Entry
	commandChannel core.CommandChannel
	log            *logging.Logger
	mu             sync.RWMutex
	done           chan struct{}
	stopOnce       sync.Once
}

// New creates a scheduler with the configured entries registered. An entry
// with an invalid spec is reported and nothing is scheduled.
func New(entries []config.ScheduleEntry, cmdChan core.CommandChannel, log *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:           cron.New(),
		store:          make(map[cron.EntryID]Entry),
		commandChannel: cmdChan,
		log:            log.With("component", "scheduler"),
		done:           make(chan struct{}),
	}

	for _, e := range entries {
		if err := s.add(e.Spec, e.Command); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cron scheduler started", "entries", len(s.store))
}

// Stop halts the cron job ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.cron.Stop().Done()
	s.log.Info("cron scheduler stopped")
}

func (s *Scheduler) add(spec, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.store[id] = Entry{Spec: spec, Command: command}
	s.log.Debug("schedule added", "id", id, "spec", spec, "command", command)
	return nil
}

// GetAll returns a copy of the current schedules.
func (s *Scheduler) GetAll() map[cron.EntryID]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[cron.EntryID]Entry, len(s.store))
	for k, v := range s.store {
		out[k] = v
	}
	return out
}

func (s *Scheduler) execute(command string) {
	s.log.Info("executing scheduled command", "command", command)
	select {
	case s.commandChannel <- core.Command{Type: core.CmdSchedule, Payload: []byte(command)}:
	case <-s.done:
	}
}
