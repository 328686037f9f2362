package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/collector"
	"github.com/theluke/petsafe-smartfeed/internal/config"
	"github.com/theluke/petsafe-smartfeed/internal/estimator"
	"github.com/theluke/petsafe-smartfeed/internal/model"
	"github.com/theluke/petsafe-smartfeed/internal/notifier"
	"github.com/theluke/petsafe-smartfeed/internal/recorder"
	"github.com/theluke/petsafe-smartfeed/internal/scheduler"
	"github.com/theluke/petsafe-smartfeed/internal/state"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] feederbot starting...")

	cfgPath := pflag.String("config", "configs/config.yaml", "path to the YAML config file")
	once := pflag.Bool("once", false, "run one status check, print it, and exit")
	dryRun := pflag.Bool("dry-run", false, "use the cached message history instead of live API calls")
	forceRecalc := pflag.Bool("force-recalc", false, "discard persisted food state and recalculate from history")
	resetFood := pflag.Bool("reset-food-level", false, "mark the reservoir as just refilled to full capacity")
	pflag.Parse()

	// Local .env, if present, before config reads the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" && !pflag.CommandLine.Changed("config") {
		*cfgPath = v
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}

	store, err := state.NewFileStore(cfg.Storage.StateFile)
	if err != nil {
		log.Fatalf("[FATAL] init state store: %v", err)
	}

	params := estimator.Params{
		PortionWeightGrams:   cfg.Feeder.PortionWeightGrams,
		CapacityGrams:        cfg.Feeder.CapacityGrams,
		RefillThresholdA:     cfg.Feeder.RefillThresholdA,
		RefillThresholdB:     cfg.Feeder.RefillThresholdB,
		LowFoodBaselineGrams: cfg.Feeder.LowFoodBaselineGrams,
		LowFoodLookback:      time.Duration(cfg.Feeder.LowFoodLookbackDays * 24 * float64(time.Hour)),
	}
	eng := estimator.New(params, store)

	if *resetFood {
		if err := eng.ResetFull(); err != nil {
			log.Fatalf("[FATAL] reset food level: %v", err)
		}
		fmt.Println("Food level state has been RESET to full capacity.")
		fmt.Println("Ensure the feeder is physically full, then trigger a manual feed so the sensors update.")
		return
	}

	if *forceRecalc {
		if err := store.Reset(); err != nil {
			log.Fatalf("[FATAL] clear state for recalc: %v", err)
		}
		log.Println("[INFO] force recalc: persisted state cleared")
	}

	// Init fetcher and collector
	var fetcher collector.Fetcher
	var gate *collector.CallGate
	if *dryRun {
		fetcher = &collector.CacheFetcher{Path: cfg.Storage.RawCacheFile}
	} else {
		fetcher = collector.NewPetSafeFetcher(cfg.PetSafe.BaseURL, cfg.PetSafe.TokenFile, cfg.Proxy)
		gate = collector.NewCallGate(cfg.Storage.CallGateFile, time.Duration(cfg.Storage.MinCallInterval)*time.Second)
	}
	log.Printf("[INFO] telemetry source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, gate, cfg.Storage.RawCacheFile, cfg.PetSafe.ThingName, cfg.PetSafe.HistoryDays)

	if *once {
		runOnce(col, eng)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, col, eng, store, tn, rec, cfg.Feeder.LowDaysAlert, cfg.Feeder.PortionWeightGrams)
	if err := sched.RegisterAll(cfg.Schedule.StatusCron, cfg.Schedule.SummaryCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing status check now")
		go sched.RunStatusNow()
	}

	log.Println("[INFO] feederbot is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] feederbot stopped")
}

// runOnce performs a single estimation pass and prints the result to stdout.
func runOnce(col *collector.Collector, eng *estimator.Engine) {
	snap, err := col.Collect()
	if err != nil {
		log.Fatalf("[FATAL] collect: %v", err)
	}
	res := eng.Run(snap.Events, snap.FoodLow)
	printReport(snap.Feeder, &res.Report)
}

func printReport(feeder *model.Feeder, rep *model.StatusReport) {
	if feeder != nil {
		fmt.Printf("\nFeeder Info:\n")
		fmt.Printf("    Name: %s\n", feeder.Name())
		fmt.Printf("    Serial: %s\n", feeder.ThingName)
		fmt.Printf("    Model: %s\n", feeder.ProductName)
		fmt.Printf("    Connected: %v\n", feeder.Connected())
		fmt.Printf("    Food Low (device): %v\n", feeder.IsFoodLow)
	}

	fmt.Printf("\nFood Remaining (calculated):\n")
	if rep.LastRefill.IsZero() {
		fmt.Printf("    Last Refill: never / state cleared\n")
	} else {
		fmt.Printf("    Last Refill: %s\n", rep.LastRefill.Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	fmt.Printf("    Percentage: %.1f%%\n", rep.PercentRemaining)
	fmt.Printf("    Est. Weight: %.1f g\n", rep.RemainingGrams)
	fmt.Printf("    Avg Consumption: %.1f g/day\n", rep.DailyConsumption)
	if rep.DaysUnbounded {
		fmt.Printf("    Est. Days Left: n/a\n")
	} else {
		fmt.Printf("    Est. Days Left: %.1f days\n", rep.DaysLeft)
	}
	if rep.OverrideApplied {
		fmt.Println("    (Note: calculation overridden by the device's low-food flag)")
	}
}
