package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/andresmejia3/formcheck/internal/report"
	"github.com/andresmejia3/formcheck/internal/store"
	"github.com/andresmejia3/formcheck/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session_id]",
	Short: "List saved workout sessions, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				utils.ShowError("Invalid session ID", err, nil)
				return err
			}
			return runShowSession(cmd.Context(), id)
		}
		return runHistory(cmd.Context(), historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of sessions to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, limit int) error {
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	sessions, err := db.ListSessions(ctx, limit)
	if err != nil {
		utils.ShowError("Failed to list sessions", err, nil)
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found in database.")
		return nil
	}
	printSessions(os.Stdout, sessions)
	return nil
}

func printSessions(out io.Writer, sessions []store.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tEXERCISE\tREPS\tAVG SCORE\tKCAL\tDURATION\tCREATED")
	fmt.Fprintln(w, "--\t--------\t----\t---------\t----\t--------\t-------")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%d\t%s\t%s\n",
			s.ID, s.Exercise, s.Reps, s.AvgScore, s.Calories,
			report.FormatDuration(s.DurationMS), s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func runShowSession(ctx context.Context, id uuid.UUID) error {
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	s, err := db.GetSession(ctx, id)
	if err != nil {
		utils.ShowError("Failed to load session", err, nil)
		return err
	}
	printSessionDetail(os.Stdout, s)
	return nil
}

func printSessionDetail(out io.Writer, s store.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Session\t%s\n", s.ID)
	fmt.Fprintf(w, "Exercise\t%s\n", s.Exercise)
	fmt.Fprintf(w, "Source\t%s\n", s.SourcePath)
	fmt.Fprintf(w, "Reps\t%d\n", s.Reps)
	fmt.Fprintf(w, "Score\tavg %.1f, min %d\n", s.AvgScore, s.MinScore)
	fmt.Fprintf(w, "Calories\t%d kcal\n", s.Calories)
	fmt.Fprintf(w, "Samples\t%d analyzed, %d out of frame\n", s.Samples, s.OutOfFrame)
	fmt.Fprintf(w, "Duration\t%s\n", report.FormatDuration(s.DurationMS))

	kinds := make([]string, 0, len(s.Issues))
	for k := range s.Issues {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return s.Issues[kinds[i]] > s.Issues[kinds[j]] })
	for _, k := range kinds {
		fmt.Fprintf(w, "Issue\t%s x%d\n", k, s.Issues[k])
	}
	w.Flush()
}
