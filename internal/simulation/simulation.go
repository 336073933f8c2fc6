// Package simulation wires the trading core into one process-scoped
// service: it restores persisted state, registers the recurring tasks and
// tears everything down again.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/trader-engine/internal/config"
	"github.com/jwebster45206/trader-engine/internal/services/async"
	"github.com/jwebster45206/trader-engine/internal/services/events"
	"github.com/jwebster45206/trader-engine/pkg/catalog"
	"github.com/jwebster45206/trader-engine/pkg/clock"
	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/scheduler"
	"github.com/jwebster45206/trader-engine/pkg/storage"
	"github.com/jwebster45206/trader-engine/pkg/trade"
	"github.com/jwebster45206/trader-engine/pkg/world"
)

// Options configure a Simulation. Clock defaults to the real clock, Sink
// to a logging sink and Events to a broadcaster with no Redis client.
type Options struct {
	Config  *config.TraderConfig
	Storage storage.Storage
	Clock   clock.Clock
	Sink    world.CommandSink
	Events  *events.Broadcaster
	Logger  *slog.Logger
}

type saveJob struct {
	npcs      []npc.Record
	removed   []string
	accounts  []ledger.Snapshot
	lastReset string
	done      chan error
}

// Simulation owns every trading service for the life of the process.
type Simulation struct {
	World     *world.Memory
	Catalog   *catalog.Catalog
	Ledger    *ledger.Ledger
	Registry  *npc.Registry
	Engine    *trade.Engine
	Scheduler *scheduler.Scheduler
	Events    *events.Broadcaster

	store storage.Storage
	log   *slog.Logger
	saver *async.Pipe[saveJob]

	mu    sync.Mutex
	cfg   *config.TraderConfig
	tasks []*scheduler.Task
}

// New builds the services. Nothing is loaded or scheduled until Init.
func New(opts Options) *Simulation {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Config == nil {
		opts.Config = config.DefaultTraderConfig()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMockStorage()
	}
	if opts.Events == nil {
		opts.Events = events.NewBroadcaster(nil, opts.Logger)
	}
	log := opts.Logger
	if opts.Sink == nil {
		opts.Sink = world.CommandSinkFunc(func(cmd string) {
			log.Info("Command dispatched", "command", cmd)
		})
	}

	s := &Simulation{
		World:     world.NewMemory(opts.Sink),
		Scheduler: scheduler.New(opts.Clock, log),
		Ledger:    ledger.New(opts.Clock),
		Catalog:   catalog.New(opts.Config.Table()),
		Events:    opts.Events,
		store:     opts.Storage,
		log:       log,
		cfg:       opts.Config,
	}
	s.World.SetHoldingSlots(opts.Config.Session.SellSlots)
	s.Registry = npc.NewRegistry(s.World, s.Scheduler, s.Catalog, opts.Config.Behavior(), log)
	s.Registry.OnChange(s.Events.PublishNPCState)
	s.Engine = trade.NewEngine(opts.Config.Settings(), trade.Deps{
		Catalog:   s.Catalog,
		Ledger:    s.Ledger,
		Registry:  s.Registry,
		World:     s.World,
		Players:   s.World,
		Scheduler: s.Scheduler,
		Publisher: s.Events,
		Log:       log,
	})
	// one pending snapshot is enough; a newer one supersedes it
	s.saver = async.NewPipe("autosave", 1, s.write, log)
	return s
}

// Init restores persisted NPCs and accounts, adds configured NPCs that are
// not stored yet and registers the recurring tasks.
func (s *Simulation) Init(ctx context.Context) error {
	cfg := s.config()
	for _, w := range cfg.Warnings {
		s.log.Warn("Trader config", "warning", w)
	}

	stored, err := s.store.LoadNPCs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load npcs: %w", err)
	}
	if err := s.Registry.Load(stored); err != nil {
		s.log.Warn("Some stored NPCs were skipped", "error", err)
	}
	removed, err := s.store.LoadRemovedNPCs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load removed npcs: %w", err)
	}
	s.Registry.SetRemoved(removed)
	added := s.addConfigured(cfg)

	accounts, err := s.store.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	s.Ledger.Restore(accounts)

	lastReset, err := s.store.LoadLastReset(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last reset: %w", err)
	}
	s.Ledger.SetLastReset(lastReset)

	s.schedule(cfg.TaskIntervals())
	s.log.Info("Simulation initialized",
		"npcs", len(s.Registry.List()),
		"npcs_from_config", added,
		"accounts", len(accounts),
		"last_reset", lastReset)
	return nil
}

// addConfigured creates configured NPCs whose id is not registered yet.
// Ids removed through the registry stay removed.
func (s *Simulation) addConfigured(cfg *config.TraderConfig) int {
	added := 0
	for _, rec := range cfg.Records() {
		if _, ok := s.Registry.Get(rec.ID); ok {
			continue
		}
		if s.Registry.IsRemoved(rec.ID) {
			s.log.Debug("Skipping removed NPC from config", "npc_id", rec.ID)
			continue
		}
		if _, err := s.Registry.Create(rec); err != nil {
			s.log.Warn("Configured NPC not created", "npc_id", rec.ID, "error", err)
			continue
		}
		added++
	}
	return added
}

func (s *Simulation) config() *config.TraderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Config returns the active trader config.
func (s *Simulation) Config() *config.TraderConfig { return s.config() }

func (s *Simulation) schedule(iv config.Intervals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		t.Cancel()
	}
	sched := s.Scheduler
	s.tasks = []*scheduler.Task{
		sched.Every("look", iv.Look, s.Registry.LookSweep),
		sched.Every("validate", iv.Validate, func() { s.Registry.ValidateAll() }),
		sched.EveryAfter("daily-check", 0, iv.DailyCheck, s.DailyCheck),
		sched.Every("redundant-reset", iv.RedundantReset, s.RedundantReset),
		sched.Every("autosave", iv.Autosave, s.Autosave),
	}
}

// DailyCheck runs the daily reset once the calendar day has changed.
func (s *Simulation) DailyCheck() {
	if !s.Ledger.SweepIfNewDay() {
		return
	}
	s.Registry.ResetDaily()
	date := s.Ledger.LastReset()
	s.Events.PublishDailyReset(date, s.Scheduler.Now())
	s.log.Info("Daily reset completed", "date", date)
	s.queueSave(nil)
}

// RedundantReset repeats the daily check in case one was missed, then rolls
// over any account still keyed to an earlier day.
func (s *Simulation) RedundantReset() {
	s.DailyCheck()
	if n := s.Ledger.Sweep(); n > 0 {
		s.log.Info("Redundant reset rolled over accounts", "count", n)
	}
}

// ForceReset runs the daily reset now regardless of the date.
func (s *Simulation) ForceReset() int {
	n := s.Ledger.Sweep()
	s.Ledger.SetLastReset(clock.Date(s.Scheduler.Now()))
	s.Registry.ResetDaily()
	s.Events.PublishDailyReset(s.Ledger.LastReset(), s.Scheduler.Now())
	s.log.Info("Forced daily reset", "accounts_rolled_over", n)
	s.queueSave(nil)
	return n
}

// Autosave snapshots state on the loop and hands it to the saver.
func (s *Simulation) Autosave() {
	s.queueSave(nil)
}

func (s *Simulation) snapshot(done chan error) saveJob {
	job := saveJob{
		npcs:      s.Registry.Records(),
		removed:   s.Registry.Removed(),
		accounts:  s.Ledger.Snapshot(),
		lastReset: s.Ledger.LastReset(),
		done:      done,
	}
	s.Registry.MarkClean()
	return job
}

func (s *Simulation) queueSave(done chan error) {
	s.saver.Send(s.snapshot(done))
}

func (s *Simulation) write(ctx context.Context, job saveJob) {
	err := s.persist(ctx, job)
	if err != nil {
		s.log.Error("Auto-save failed", "error", err)
		s.Registry.MarkDirty()
	} else {
		s.log.Debug("Auto-save complete", "npcs", len(job.npcs), "accounts", len(job.accounts))
	}
	if job.done != nil {
		job.done <- err
	}
}

func (s *Simulation) persist(ctx context.Context, job saveJob) error {
	var errs []error
	if err := s.store.SaveNPCs(ctx, job.npcs); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.SaveRemovedNPCs(ctx, job.removed); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.SaveAccounts(ctx, job.accounts); err != nil {
		errs = append(errs, err)
	}
	if job.lastReset != "" {
		if err := s.store.SaveLastReset(ctx, job.lastReset); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveNow persists a snapshot on the caller's goroutine.
func (s *Simulation) SaveNow(ctx context.Context) error {
	job := s.snapshot(nil)
	if err := s.persist(ctx, job); err != nil {
		s.Registry.MarkDirty()
		return err
	}
	return nil
}

// Reload applies a new trader config. NPCs already registered keep their
// stored records and price overrides; new ids from the config are created
// unless they were removed.
func (s *Simulation) Reload(cfg *config.TraderConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	for _, w := range cfg.Warnings {
		s.log.Warn("Trader config", "warning", w)
	}
	s.Catalog.Reload(cfg.Table())
	s.Registry.SyncOverrides()
	s.Engine.UpdateSettings(cfg.Settings())
	s.Registry.SetBehavior(cfg.Behavior())
	s.World.SetHoldingSlots(cfg.Session.SellSlots)
	added := s.addConfigured(cfg)
	s.schedule(cfg.TaskIntervals())
	s.log.Info("Trader config reloaded", "npcs_added", added)
}

// Start runs the background services and the scheduler loop until ctx is
// done. It returns once the loop is running.
func (s *Simulation) Start(ctx context.Context) {
	s.saver.Start(ctx)
	s.Events.Start(ctx)
	go s.Scheduler.Run(ctx)
	for !s.Scheduler.Running() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Teardown cancels recurring tasks, closes every session, takes NPCs out
// of the world and writes a final snapshot. Call it after the scheduler
// loop has stopped.
func (s *Simulation) Teardown(ctx context.Context) error {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.Cancel()
	}
	s.tasks = nil
	s.mu.Unlock()

	s.Engine.Teardown()
	s.Registry.Teardown()
	s.saver.Stop(5 * time.Second)

	err := s.SaveNow(ctx)
	s.Events.Stop(2 * time.Second)
	if err != nil {
		return fmt.Errorf("final save failed: %w", err)
	}
	s.log.Info("Simulation stopped")
	return nil
}
