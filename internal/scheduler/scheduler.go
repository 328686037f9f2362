package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/collector"
	"github.com/theluke/petsafe-smartfeed/internal/estimator"
	"github.com/theluke/petsafe-smartfeed/internal/model"
	"github.com/theluke/petsafe-smartfeed/internal/notifier"
	"github.com/theluke/petsafe-smartfeed/internal/recorder"
	"github.com/theluke/petsafe-smartfeed/internal/state"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the periodic estimation runs and user commands.
type Scheduler struct {
	Cron          *cron.Cron
	Collector     *collector.Collector
	Engine        *estimator.Engine
	Store         state.Store
	Notifier      *notifier.TelegramNotifier
	Recorder      recorder.Recorder
	Ctx           context.Context
	LowDaysAlert  float64
	PortionWeight float64

	mu           sync.Mutex // runs against the state file must not overlap
	lastSnap     *collector.Snapshot
	lastLowAlert time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, eng *estimator.Engine, st state.Store,
	tn *notifier.TelegramNotifier, rec recorder.Recorder, lowDaysAlert, portionWeight float64) *Scheduler {
	return &Scheduler{
		Cron:          cron.New(cron.WithSeconds()),
		Collector:     col,
		Engine:        eng,
		Store:         st,
		Notifier:      tn,
		Recorder:      rec,
		Ctx:           ctx,
		LowDaysAlert:  lowDaysAlert,
		PortionWeight: portionWeight,
	}
}

// RegisterAll registers the periodic status check and the daily summary.
func (s *Scheduler) RegisterAll(statusCron, summaryCron string) error {
	if _, err := s.Cron.AddFunc(statusCron, s.statusTask); err != nil {
		return fmt.Errorf("register status task: %w", err)
	}
	if _, err := s.Cron.AddFunc(summaryCron, s.summaryTask); err != nil {
		return fmt.Errorf("register summary task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunStatusNow executes a status check immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunStatusNow() {
	s.statusTask()
}

// statusTask runs an estimation pass and sends only alerts, not the full
// report, to keep the chat quiet between summaries.
func (s *Scheduler) statusTask() {
	log.Println("[INFO] running status check")
	rep, _ := s.runEstimation()
	if rep == nil {
		return
	}

	if rep.RefillDetected {
		s.trySend(notifier.FormatRefillAlert(rep))
	}
	if !rep.DaysUnbounded && rep.DaysLeft < s.LowDaysAlert {
		// At most one low alert per day.
		if time.Since(s.lastLowAlert) > 24*time.Hour {
			s.trySend(notifier.FormatLowFoodAlert(rep))
			s.lastLowAlert = time.Now()
		}
	}
}

// summaryTask sends the full daily status message.
func (s *Scheduler) summaryTask() {
	log.Println("[INFO] running daily summary")
	rep, snap := s.runEstimation()
	if rep == nil {
		return
	}
	msg := notifier.FormatStatus(snap.Feeder, rep)
	msg += "\n" + notifier.FormatFeedHistory(snap.Events, 15)
	s.trySend(msg)
}

// runEstimation performs one collect-estimate-record cycle. Returns nil on
// collection failure (already logged and notified).
func (s *Scheduler) runEstimation() (*model.StatusReport, *collector.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.Collector.Collect()
	if err != nil {
		log.Printf("[ERROR] collect: %v", err)
		s.trySend(fmt.Sprintf("❌ Failed to collect feeder telemetry: %v", err))
		return nil, nil
	}
	s.lastSnap = snap

	res := s.Engine.Run(snap.Events, snap.FoodLow)
	s.record(res)
	return &res.Report, snap
}

// record persists the run outcome to the history recorder.
func (s *Scheduler) record(res *estimator.RunResult) {
	runID := uuid.NewString()
	if err := s.Recorder.RecordRun(&recorder.RunSnapshot{RunID: runID, Report: &res.Report}); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
	for _, ev := range res.Processed {
		if !ev.IsFeed() {
			continue
		}
		if err := s.Recorder.RecordFeed(&recorder.FeedEvent{
			Time:     ev.Time,
			Portions: ev.Portions,
			Grams:    ev.Portions * s.PortionWeight,
			Source:   string(ev.Source),
		}); err != nil {
			log.Printf("[ERROR] record feed: %v", err)
		}
	}
	if res.Report.RefillDetected {
		if err := s.Recorder.RecordRefill(&recorder.RefillEvent{
			Time:       res.Report.LastRefill,
			DetectedAt: res.Report.GeneratedAt,
		}); err != nil {
			log.Printf("[ERROR] record refill: %v", err)
		}
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/status":
		rep, snap := s.runEstimation()
		if rep == nil {
			return "status check failed, see logs"
		}
		return notifier.FormatStatus(snap.Feeder, rep)
	case "/feeds":
		s.mu.Lock()
		snap := s.lastSnap
		s.mu.Unlock()
		if snap == nil {
			return "no telemetry collected yet, try /status first"
		}
		return notifier.FormatFeedHistory(snap.Events, 15)
	case "/reset":
		s.mu.Lock()
		err := s.Engine.ResetFull()
		s.mu.Unlock()
		if err != nil {
			return fmt.Sprintf("reset failed: %v", err)
		}
		return "Food level reset to full capacity.\nEnsure the feeder is physically full, then trigger a manual feed so the sensors update."
	case "/recalc":
		s.mu.Lock()
		if err := s.Store.Reset(); err != nil {
			s.mu.Unlock()
			return fmt.Sprintf("recalc failed: %v", err)
		}
		s.mu.Unlock()
		rep, snap := s.runEstimation()
		if rep == nil {
			return "recalculation failed, see logs"
		}
		return "Recalculated from history.\n\n" + notifier.FormatStatus(snap.Feeder, rep)
	default:
		return "Available commands:\n• /status\n• /feeds\n• /reset\n• /recalc"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
