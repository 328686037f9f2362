package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// FormatStatus formats a status report (plus live feeder info when
// available) into a Telegram message.
func FormatStatus(feeder *model.Feeder, rep *model.StatusReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🍖 <b>Feeder Status</b> | %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04")))

	if feeder != nil {
		connected := "No"
		if feeder.Connected() {
			connected = "Yes"
		}
		b.WriteString(fmt.Sprintf("Feeder: %s (%s)\n", feeder.Name(), feeder.ProductName))
		b.WriteString(fmt.Sprintf("Connected: %s | Battery: %.2fV\n", connected, feeder.BatteryVolts()))
		b.WriteString(fmt.Sprintf("Food Low (device): %v\n\n", feeder.IsFoodLow))
	}

	b.WriteString("📊 <b>Food Remaining:</b>\n")
	if rep.LastRefill.IsZero() {
		b.WriteString("  Last refill: never / state cleared\n")
	} else {
		b.WriteString(fmt.Sprintf("  Last refill: %s\n", rep.LastRefill.Format("Mon, 02 Jan 2006 15:04 MST")))
	}
	b.WriteString(fmt.Sprintf("  Level: %.1f%% (%.1fg)\n", rep.PercentRemaining, rep.RemainingGrams))
	b.WriteString(fmt.Sprintf("  Avg consumption: %.1fg/day\n", rep.DailyConsumption))
	if rep.DaysUnbounded {
		b.WriteString("  Est. days left: n/a (no consumption observed)\n")
	} else {
		b.WriteString(fmt.Sprintf("  Est. days left: %.1f\n", rep.DaysLeft))
	}
	if rep.OverrideApplied {
		b.WriteString("\n⚠️ Estimate overridden by the device's low-food flag\n")
	}

	return b.String()
}

// FormatFeedHistory lists recent dispense events, newest first.
func FormatFeedHistory(events []model.Event, limit int) string {
	feeds := make([]model.Event, 0, len(events))
	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	for _, ev := range events {
		if ev.Kind == model.KindFeedDone && ev.Time.After(cutoff) {
			feeds = append(feeds, ev)
		}
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].Time.After(feeds[j].Time) })

	var b strings.Builder
	b.WriteString("🕐 <b>Recent Feedings (7 days):</b>\n")
	if len(feeds) == 0 {
		b.WriteString("  no feeding events found\n")
		return b.String()
	}
	if limit > 0 && len(feeds) > limit {
		feeds = feeds[:limit]
	}
	for _, ev := range feeds {
		b.WriteString(fmt.Sprintf("  %s - %.0f portions (%s)\n",
			ev.Time.Format("Mon 02 Jan 15:04"), ev.Portions, ev.Source))
	}
	return b.String()
}

// FormatRefillAlert announces a freshly detected refill.
func FormatRefillAlert(rep *model.StatusReport) string {
	return fmt.Sprintf("✅ <b>Reservoir refilled</b>\n\nDetected at %s, level reset to %.1fg (%.0f%%)",
		rep.LastRefill.Format("2006-01-02 15:04"), rep.RemainingGrams, rep.PercentRemaining)
}

// FormatLowFoodAlert warns that the projected runway is short.
func FormatLowFoodAlert(rep *model.StatusReport) string {
	var b strings.Builder
	b.WriteString("🚨 <b>Food running low</b>\n\n")
	b.WriteString(fmt.Sprintf("Remaining: %.1fg (%.1f%%)\n", rep.RemainingGrams, rep.PercentRemaining))
	if !rep.DaysUnbounded {
		b.WriteString(fmt.Sprintf("Projected days left: %.1f\n", rep.DaysLeft))
	}
	if rep.OverrideApplied {
		b.WriteString("(device low-food flag is asserted)\n")
	}
	b.WriteString("\nConsider refilling the reservoir.")
	return b.String()
}
