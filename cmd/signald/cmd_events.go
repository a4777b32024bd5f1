package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signald/internal/event"
	"signald/internal/store"
)

var (
	eventsDays    int
	eventsService string
	eventsLimit   int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect stored events",
	Long: `Reads the event database directly and prints recent events with a
summary. Use --service to restrict the listing to one service.`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVar(&eventsDays, "days", 7, "Look-back window in days")
	eventsCmd.Flags().StringVar(&eventsService, "service", "", "Filter by service name")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "Maximum events to print")
}

func runEvents(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	var events []event.StoredEvent
	if eventsService != "" {
		events, err = st.QueryByService(ctx, eventsService, eventsDays)
	} else {
		events, err = st.QueryRecent(ctx, time.Duration(eventsDays)*24*time.Hour)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	summary, err := st.SummaryStats(ctx, eventsDays)
	if err != nil {
		return fmt.Errorf("summary failed: %w", err)
	}

	fmt.Printf("Events: %d total (%d critical, %d warning, %d info) across %d services\n\n",
		summary.TotalEvents, summary.CriticalCount, summary.WarningCount,
		summary.InfoCount, summary.AffectedServices)

	if len(summary.TopServices) > 0 {
		fmt.Println("Top services:")
		for _, sc := range summary.TopServices {
			fmt.Printf("  %-24s %d\n", sc.Service, sc.EventCount)
		}
		fmt.Println()
	}

	shown := len(events)
	if eventsLimit > 0 && shown > eventsLimit {
		shown = eventsLimit
	}
	for _, ev := range events[:shown] {
		fmt.Printf("%-20s %-10s %-18s %s\n", ev.Timestamp, ev.CalculatedSeverity, ev.Service, ev.Message)
	}
	if shown < len(events) {
		fmt.Printf("... and %d more\n", len(events)-shown)
	}
	return nil
}
