package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xicom-labs/presales-bot/config"
	"github.com/xicom-labs/presales-bot/internal/booking"
)

// bookingCMD is an operator CLI over the same availability/booking path
// the chatbot uses.
func bookingCMD() *cobra.Command {
	var cfgPath string

	var root = &cobra.Command{
		Use:   "booking",
		Short: "Calendar booking agent",
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file")

	var days, duration int
	var date string
	availability := &cobra.Command{
		Use:   "availability",
		Short: "List free slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			agent, loc, err := buildAgent(cmd.Context(), cfg, days, duration, date)
			if err != nil {
				return err
			}
			windows, err := agent.AvailableWindows(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(booking.FormatWindows(windows, loc))
			return nil
		},
	}
	availability.Flags().IntVar(&days, "days", 1, "days ahead")
	availability.Flags().StringVar(&date, "date", "", "start date (YYYY-MM-DD)")
	availability.Flags().IntVar(&duration, "duration", 30, "slot duration in minutes")

	var bookDate, bookTime, email, summary string
	var bookDuration int
	book := &cobra.Command{
		Use:   "book",
		Short: "Book a slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			agent, loc, err := buildAgent(cmd.Context(), cfg, 1, bookDuration, "")
			if err != nil {
				return err
			}
			start, err := time.ParseInLocation("2006-01-02 15:04", bookDate+" "+bookTime, loc)
			if err != nil {
				return fmt.Errorf("parsing date/time: %w", err)
			}
			result, err := agent.Book(cmd.Context(), start, email, summary)
			if err != nil {
				return err
			}
			fmt.Println("Event created:")
			fmt.Printf("Event link: %s\n", result.EventLink)
			fmt.Printf("Meet link: %s\n", result.MeetLink)
			return nil
		},
	}
	book.Flags().StringVar(&bookDate, "date", "", "date (YYYY-MM-DD)")
	book.Flags().StringVar(&bookTime, "time", "", "time (HH:MM)")
	book.Flags().IntVar(&bookDuration, "duration", 30, "duration in minutes")
	book.Flags().StringVar(&email, "email", "", "attendee email")
	book.Flags().StringVar(&summary, "summary", "Consultation", "event summary")
	_ = book.MarkFlagRequired("date")
	_ = book.MarkFlagRequired("time")
	_ = book.MarkFlagRequired("email")

	root.AddCommand(availability, book)
	return root
}

func buildAgent(ctx context.Context, cfg *config.Config, days, duration int, date string) (*booking.Agent, *time.Location, error) {
	loc, err := time.LoadLocation(cfg.Booking.TimeZone)
	if err != nil {
		return nil, nil, err
	}

	bcfg := cfg.Booking
	bcfg.HorizonDays = days
	if duration > 0 {
		bcfg.SlotMinutes = duration
	}

	var now func() time.Time
	if date != "" {
		start, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing date: %w", err)
		}
		now = func() time.Time { return start }
	}

	cal, err := booking.NewGoogleCalendar(ctx, bcfg.CalendarID, bcfg.CredentialsFile, bcfg.TokenFile)
	if err != nil {
		return nil, nil, err
	}
	agent, err := booking.NewAgent(cal, bcfg, now)
	if err != nil {
		return nil, nil, err
	}
	return agent, loc, nil
}
