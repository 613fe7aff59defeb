package agent

import (
	"context"
	"sync"
	"time"

	"ampsupply-controller/internal/core"
	"ampsupply-controller/internal/health"
	"ampsupply-controller/internal/indicator"
	"ampsupply-controller/internal/logging"
	"ampsupply-controller/internal/relay"
	"ampsupply-controller/internal/timer"
)

// Service is a background component that runs until ctx is cancelled and
// talks to the agent only through the command channel.
type Service interface {
	Run(ctx context.Context)
}

// Options are the collaborators of an Agent. Build assembles the production
// set; tests inject fakes.
type Options struct {
	Topics   core.Topics
	Session  core.Session
	Updater  core.Updater
	Reporter *health.Reporter

	Main core.Output
	DC   core.Output
	LED  core.Output

	// Timers defaults to runtime timers delivered through the command channel.
	Timers    timer.Scheduler
	Settle    time.Duration
	BlinkBase time.Duration

	Bus      *core.EventBus
	Commands core.CommandChannel
	Services []Service
	Logger   *logging.Logger
}

// Agent is the single actor that owns the device state. Every callback from
// the outside world arrives as a core.Command and is handled to completion
// before the next one.
type Agent struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped chan struct{}

	state          *core.DeviceState
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	topics    core.Topics
	session   core.Session
	updater   core.Updater
	reporter  *health.Reporter
	relay     *relay.Sequencer
	indicator *indicator.Engine
	services  []Service
	log       *logging.Logger

	lastSnapshot core.Snapshot
	published    bool
}

// New creates an Agent from its collaborators. Nothing is driven until Run.
func New(opts Options) *Agent {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Commands == nil {
		opts.Commands = make(core.CommandChannel, 32)
	}
	if opts.Bus == nil {
		opts.Bus = core.NewEventBus()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		stopped:        make(chan struct{}),
		state:          core.NewState(),
		eventBus:       opts.Bus,
		commandChannel: opts.Commands,
		topics:         opts.Topics,
		session:        opts.Session,
		updater:        opts.Updater,
		reporter:       opts.Reporter,
		services:       opts.Services,
		log:            opts.Logger.With("component", "agent"),
	}

	timers := opts.Timers
	if timers == nil {
		timers = timer.NewLoop(a.Post)
	}
	a.relay = relay.NewSequencer(opts.Main, opts.DC, timers, opts.Settle, a.state, a.refresh, opts.Logger)
	a.indicator = indicator.NewEngine(opts.LED, timers, opts.BlinkBase, a.onTick)
	return a
}

// Run drives the boot state, starts the background services and processes
// commands until Shutdown.
func (a *Agent) Run() {
	defer close(a.stopped)

	a.boot()

	for _, svc := range a.services {
		a.wg.Add(1)
		go func(svc Service) {
			defer a.wg.Done()
			svc.Run(a.ctx)
		}(svc)
	}

	a.log.Info("agent orchestrator ready")
	for {
		select {
		case <-a.ctx.Done():
			a.log.Info("agent orchestrator shutting down")
			a.indicator.Stop()
			a.relay.Stop()
			return
		case cmd := <-a.commandChannel:
			a.handle(cmd)
		}
	}
}

// Shutdown stops the loop and waits for the background services.
func (a *Agent) Shutdown() {
	a.cancel()
	<-a.stopped
	a.wg.Wait()
	a.log.Info("agent stopped", "dropped_events", a.eventBus.Dropped())
}

// Post queues fn for execution on the agent loop. It is the delivery path of
// every timer.
func (a *Agent) Post(fn func()) {
	select {
	case a.commandChannel <- core.Command{Type: core.CmdTimer, Run: fn}:
	case <-a.ctx.Done():
	}
}

// EventBus returns the bus observers subscribe to.
func (a *Agent) EventBus() *core.EventBus { return a.eventBus }

// boot puts the relays in their safe state and shows the link fault until
// the link watcher reports otherwise.
func (a *Agent) boot() {
	a.relay.Init()
	a.state.Link = core.LinkDisconnected
	a.refresh()
	a.publishState()
	a.log.Info("boot state applied", "mode", a.indicator.Mode().String())
}

func (a *Agent) handle(cmd core.Command) {
	if a.state.Halted {
		return
	}

	switch cmd.Type {
	case core.CmdTimer:
		if cmd.Run != nil {
			cmd.Run()
		}
	case core.CmdLinkUp:
		a.onLinkUp()
	case core.CmdLinkDown:
		a.onLinkDown()
	case core.CmdSessionConnected:
		a.onSessionConnected()
	case core.CmdSessionDisconnected:
		a.onSessionDisconnected()
	case core.CmdSessionError:
		a.onSessionError(cmd.Err)
	case core.CmdMessage:
		a.onMessage(cmd.Topic, cmd.Payload)
	case core.CmdSchedule:
		a.onSchedule(string(cmd.Payload))
	default:
		a.log.Warn("unknown command type", "type", cmd.Type)
	}

	if a.state.Halted {
		return
	}
	a.refresh()
	a.publishState()
}

// refresh applies the mode the current state resolves to.
func (a *Agent) refresh() {
	if a.state.Halted {
		return
	}
	a.indicator.SetMode(core.ResolveMode(a.state))
}

// onTick runs on every indicator blink: it advances the tick counter and
// publishes the health report on cadence while the session is up.
func (a *Agent) onTick() {
	a.state.TickCount++
	if a.state.Link != core.LinkSessionConnected || !a.reporter.Due(a.state.TickCount) {
		return
	}
	report := a.reporter.BuildReport()
	a.session.Publish(a.topics.Status(), report)
	a.eventBus.Publish(core.Event{Type: core.ReportPublishedEvent, Payload: report})
	a.log.Debug("health report published", "report", report)
}

// publishState emits a StateChangedEvent when the observable state changed.
func (a *Agent) publishState() {
	snap := a.state.Snapshot(a.indicator.Mode())
	if a.published && snap == a.lastSnapshot {
		return
	}
	a.lastSnapshot = snap
	a.published = true
	a.eventBus.Publish(core.Event{Type: core.StateChangedEvent, Payload: snap})
}
