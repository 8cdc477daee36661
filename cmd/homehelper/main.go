package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homehelper/internal/export"
	"homehelper/internal/models"
	"homehelper/internal/service"
	"homehelper/internal/views"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "homehelper",
		Usage: "track and act on Home Helper bookings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "configs/config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML config",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "answer yes to confirmation prompts",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "poll booking lists and run countdowns until interrupted",
				Action: watch,
			},
			{
				Name:   "snapshot",
				Usage:  "print the derived dashboard as JSON",
				Action: snapshot,
			},
			actionCommand("accept", "accept a scheduled booking", func(ctx context.Context, t *service.BookingTracker, id string, _ *cli.Context) error {
				return t.Accept(ctx, id)
			}),
			{
				Name:      "reject",
				Usage:     "reject a scheduled booking",
				ArgsUsage: "BOOKING_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Aliases: []string{"r"}, Usage: "reason shown to the customer"},
				},
				Action: withAction(func(ctx context.Context, t *service.BookingTracker, id string, c *cli.Context) error {
					return t.Reject(ctx, id, c.String("reason"))
				}),
			},
			actionCommand("complete", "mark a booking as completed", func(ctx context.Context, t *service.BookingTracker, id string, _ *cli.Context) error {
				return t.Complete(ctx, id)
			}),
			actionCommand("cancel", "cancel one of your bookings", func(ctx context.Context, t *service.BookingTracker, id string, _ *cli.Context) error {
				return t.Cancel(ctx, id)
			}),
			actionCommand("accept-instant", "accept an instant hiring request", func(ctx context.Context, t *service.BookingTracker, id string, _ *cli.Context) error {
				return t.AcceptInstant(ctx, id)
			}),
			actionCommand("reject-instant", "reject an instant hiring request", func(ctx context.Context, t *service.BookingTracker, id string, _ *cli.Context) error {
				return t.RejectInstant(ctx, id)
			}),
			{
				Name:  "export",
				Usage: "write a filtered list to an xlsx workbook",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "list", Value: "", Usage: "active, completed, instant or bookings"},
					&cli.StringFlag{Name: "search", Usage: "search term"},
					&cli.StringFlag{Name: "field", Value: string(views.FieldCustomer), Usage: "customer, provider, service, location, id or any"},
					&cli.StringFlag{Name: "day", Usage: "calendar day, YYYY-MM-DD"},
					&cli.StringFlag{Name: "status", Usage: "exact status"},
				},
				Action: exportList,
			},
			{
				Name:   "leaderboard",
				Usage:  "show the customer spend leaderboard",
				Action: leaderboard,
			},
			{
				Name:      "reviews",
				Usage:     "show reviews and sentiment for a provider",
				ArgsUsage: "PROVIDER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subcategory", Usage: "subcategory id"},
				},
				Action: reviews,
			},
			{
				Name:  "history",
				Usage: "list recent lifecycle actions from the local log",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "since", Value: 24 * time.Hour},
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: history,
			},
		},
	}
}

type actionFunc func(ctx context.Context, t *service.BookingTracker, id string, c *cli.Context) error

func actionCommand(name, usage string, fn actionFunc) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "BOOKING_ID",
		Action:    withAction(fn),
	}
}

// withAction loads the lists first so expiry and event payloads see the
// record, then runs one lifecycle action.
func withAction(fn actionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("booking id is required", 2)
		}
		rt, err := setup(c.Context, c.String("config"))
		if err != nil {
			return err
		}
		defer rt.close()
		stopKafka := rt.startKafka(c.Context)
		defer stopKafka()

		tracker, err := rt.tracker(stdConfirmer(c.Bool("yes")))
		if err != nil {
			return err
		}
		defer tracker.Close()

		_ = tracker.Refresh(c.Context)
		if err := fn(c.Context, tracker, id, c); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return nil
	}
}

func watch(c *cli.Context) error {
	rt, err := setup(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	rt.startMetrics(c.Context)
	stopKafka := rt.startKafka(c.Context)
	defer stopKafka()

	tracker, err := rt.tracker(stdConfirmer(c.Bool("yes")))
	if err != nil {
		return err
	}

	rt.logger.Info().
		Str("user_id", rt.session.User.ID).
		Str("role", string(rt.session.User.Role)).
		Msg("watching bookings")
	return tracker.Run(c.Context)
}

func snapshot(c *cli.Context) error {
	rt, err := setup(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	tracker, err := rt.tracker(stdConfirmer(true))
	if err != nil {
		return err
	}
	defer tracker.Close()

	if err := tracker.Refresh(c.Context); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return printJSON(tracker.Snapshot(time.Now()))
}

func exportList(c *cli.Context) error {
	status := models.Status(c.String("status"))
	if status != "" && !status.IsKnown() {
		return cli.Exit(fmt.Sprintf("unknown status %q", status), 2)
	}
	rt, err := setup(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	tracker, err := rt.tracker(stdConfirmer(true))
	if err != nil {
		return err
	}
	defer tracker.Close()

	if err := tracker.Refresh(c.Context); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	kind := service.ListKind(c.String("list"))
	if kind == "" {
		kind = tracker.Kinds()[0]
	}
	loc := rt.cfg.Tracker.Location()
	day, err := views.ParseDay(c.String("day"), loc)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid day: %v", err), 2)
	}

	records := tracker.Filter(kind, views.Criteria{
		Term:     c.String("search"),
		Field:    views.Field(c.String("field")),
		Day:      day,
		Status:   status,
		Location: loc,
	})

	path, err := export.WriteWorkbook(records, export.Options{
		Dir:      rt.cfg.Exports.Path,
		Title:    fmt.Sprintf("%s bookings", kind),
		Location: loc,
	})
	if err != nil {
		return err
	}
	rt.logger.Info().Str("file_path", path).Int("rows", len(records)).Msg("Excel file created")
	fmt.Println(path)
	return nil
}

func leaderboard(c *cli.Context) error {
	rt, err := setup(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	board, err := rt.api.SpendLeaderboard(c.Context, rt.session.User.ID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if insights, ok := board.Insights(models.LeaderboardSize); ok {
		return printJSON(insights)
	}

	// no viewer block from the backend: rank the viewer by their own completed spend
	tracker, err := rt.tracker(stdConfirmer(true))
	if err != nil {
		return err
	}
	defer tracker.Close()
	if err := tracker.Refresh(c.Context); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	viewer := models.LeaderboardEntry{
		UserID:     rt.session.User.ID,
		Name:       rt.session.User.Name,
		TotalSpend: tracker.Snapshot(time.Now()).CompletedSpend,
	}
	return printJSON(views.SpendInsights(board.Leaders, viewer, models.LeaderboardSize))
}

func reviews(c *cli.Context) error {
	providerID := c.Args().First()
	if providerID == "" {
		return cli.Exit("provider id is required", 2)
	}
	rt, err := setup(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	out, err := rt.api.ProviderReviews(c.Context, providerID, c.String("subcategory"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return printJSON(out)
}

func history(c *cli.Context) error {
	rt, err := setup(c.Context, c.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.db == nil {
		return cli.Exit("history requires database.path", 2)
	}
	entries, err := rt.db.RecentActions(c.Context, time.Now().Add(-c.Duration("since")), c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
