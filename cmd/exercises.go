package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/andresmejia3/formcheck/internal/repetition"
	"github.com/andresmejia3/formcheck/internal/rules"
	"github.com/spf13/cobra"
)

var exercisesRulesPath string

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List supported exercises and the rule each one uses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		set := rules.Default()
		if exercisesRulesPath != "" {
			overrides, err := rules.LoadOverrides(exercisesRulesPath)
			if err != nil {
				return err
			}
			if set, err = set.Apply(overrides); err != nil {
				return fmt.Errorf("invalid rules file: %w", err)
			}
		}
		listExercises(os.Stdout, set)
		return nil
	},
}

func init() {
	exercisesCmd.Flags().StringVar(&exercisesRulesPath, "rules", "", "Show thresholds with this overrides file applied")
	rootCmd.AddCommand(exercisesCmd)
}

func listExercises(out io.Writer, set rules.Set) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tRULE\tSIGNAL\tDETECTOR\tTHRESHOLDS\tCHECKS\tBASELINE")
	fmt.Fprintln(w, "--\t----\t------\t--------\t----------\t------\t--------")

	for _, id := range set.IDs() {
		r := set[id]
		checks := make([]string, len(r.Checks))
		for i, c := range r.Checks {
			checks[i] = c.Name
		}
		checkList := strings.Join(checks, ",")
		if checkList == "" {
			checkList = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", id, r.Name, r.Signal.Name, r.Detector, thresholds(r), checkList, r.Baseline)
	}
	w.Flush()
}

func thresholds(r rules.Rule) string {
	switch r.Detector {
	case repetition.KindAngle:
		if !strings.HasSuffix(r.Signal.Name, "angle") {
			return fmt.Sprintf("%.0f/%.0f", r.Lo, r.Hi)
		}
		return fmt.Sprintf("%.0f°/%.0f°", r.Lo, r.Hi)
	case repetition.KindHeight:
		return fmt.Sprintf("±%.0f", r.Delta)
	default:
		return "-"
	}
}
