package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dukerupert/huddle/internal/importer"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
)

// withApp runs fn against an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, a.close(closeCtx))
	}()
	return fn(ctx, a)
}

var weekFlag string

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List overlapping meetings for each weekday",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			cache := a.srv.Cache()
			filter := cache.State().CurrentWeekType
			if weekFlag != "" {
				filter = model.WeekType(weekFlag)
				if !filter.Valid() {
					return fmt.Errorf("unknown week type %q", weekFlag)
				}
			}

			names := make(map[int64]string)
			for _, m := range cache.Meetings() {
				names[m.ID] = m.Name
			}
			byDay := schedule.ConflictsForWeek(cache.Meetings(), filter)

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "DAY\tTIME\tMEETINGS\n")
			total := 0
			for _, day := range model.Weekdays {
				for _, c := range byDay[day] {
					fmt.Fprintf(tw, "%s\t%s\t%s / %s\n", day, c.Time, names[c.MeetingIDs[0]], names[c.MeetingIDs[1]])
					total++
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d conflicts (%s)\n", total, filter)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.ics|->",
	Short: "Import meetings from an ICS export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open calendar: %w", err)
			}
			defer f.Close()
			r = f
		}
		body, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read calendar: %w", err)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			cache := a.srv.Cache()
			settings := cache.Settings()
			events, err := importer.ParseICS(body, a.cfg.Location())
			if err != nil {
				return err
			}
			meetings, skipped := importer.NormalizeAll(events, settings.TimeFormat)
			res, err := cache.ImportMeetings(ctx, meetings)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, err := range skipped {
				fmt.Fprintf(out, "skipped: %v\n", err)
			}
			fmt.Fprintf(out, "%d created, %d updated, %d unchanged\n", res.Created, res.Updated, res.Unchanged)
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull every subscribed ICS calendar now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			results, err := a.srv.Syncer().SyncAll(ctx)
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s: %d created, %d updated, %d skipped\n", r.Name, r.Import.Created, r.Import.Updated, r.Skipped)
			}
			return err
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted backups",
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload an encrypted snapshot now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			key, err := a.srv.BackupManager().RunNow(ctx, a.srv.Cache())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			objects, err := a.srv.BackupManager().List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "KEY\tCREATED\tSIZE\n")
			for _, o := range objects {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", o.Key, o.CreatedAt.Format(time.RFC3339), o.SizeBytes)
			}
			return tw.Flush()
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <key>",
	Short: "Replay a backup into the active store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			snap, err := a.srv.BackupManager().Restore(ctx, args[0], a.srv.Selector())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d meetings and %d categories\n", len(snap.Meetings), len(snap.Categories))
			return a.srv.Cache().Refresh(ctx)
		})
	},
}

func init() {
	conflictsCmd.Flags().StringVar(&weekFlag, "week", "", "week type filter (defaults to the saved one)")

	backupCmd.AddCommand(backupRunCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}
