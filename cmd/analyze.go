package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/andresmejia3/formcheck/internal/engine"
	"github.com/andresmejia3/formcheck/internal/report"
	"github.com/andresmejia3/formcheck/internal/rules"
	"github.com/andresmejia3/formcheck/internal/samples"
	"github.com/andresmejia3/formcheck/internal/store"
	"github.com/andresmejia3/formcheck/internal/tally"
	"github.com/andresmejia3/formcheck/internal/types"
	"github.com/andresmejia3/formcheck/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var analyzeOpts Options

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a recorded pose stream (JSONL, one sample per line)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAnalyze(cmd.Context(), analyzeOpts)
	},
}

func init() {
	addSessionFlags(analyzeCmd, &analyzeOpts)
	analyzeCmd.Flags().StringVarP(&analyzeOpts.InputPath, "input", "i", "", "Path to the samples file")
	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

// addSessionFlags registers the flags shared by every command that runs the engine.
func addSessionFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Exercise, "exercise", "e", "", "Exercise identifier (see 'formcheck exercises')")
	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "YAML file with per-exercise threshold overrides")
	cmd.Flags().Float64Var(&opts.MinConfidence, "min-confidence", engine.DefaultMinLikelihood, "Minimum landmark in-frame likelihood")
	cmd.Flags().IntVar(&opts.KcalPerRep, "kcal", 5, "Exercise calorie rating (calories = reps x kcal / 10)")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Persist the session summary to PostgreSQL")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print every repetition and correction as it happens")
	cmd.Flags().IntVar(&opts.ManualReps, "manual-reps", 0, "Repetitions logged by hand that the camera missed")
	cmd.MarkFlagRequired("exercise")
}

// validateSessionFlags checks the input file and the engine options.
func validateSessionFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected a file", opts.InputPath)
	}
	if opts.Exercise == "" {
		return errors.New("an exercise is required")
	}
	if opts.MinConfidence < 0 || opts.MinConfidence > 1.0 {
		return fmt.Errorf("min-confidence must be between 0.0 and 1.0, got %f", opts.MinConfidence)
	}
	if opts.KcalPerRep < 0 {
		return fmt.Errorf("kcal must be >= 0, got %d", opts.KcalPerRep)
	}
	if opts.ManualReps < 0 {
		return fmt.Errorf("manual-reps must be >= 0, got %d", opts.ManualReps)
	}
	return nil
}

// buildEngine loads rule overrides, if any, and creates the engine.
func buildEngine(opts Options) (*engine.Engine, error) {
	set := rules.Default()
	if opts.RulesPath != "" {
		overrides, err := rules.LoadOverrides(opts.RulesPath)
		if err != nil {
			return nil, err
		}
		if set, err = set.Apply(overrides); err != nil {
			return nil, fmt.Errorf("invalid rules file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "📐 Loaded %d rule override(s) from %s\n", len(overrides), opts.RulesPath)
	}

	e := engine.New(opts.Exercise, engine.WithRuleSet(set), engine.WithMinLikelihood(opts.MinConfidence))
	if !e.Known() {
		fmt.Fprintf(os.Stderr, "⚠️  Unknown exercise %q, falling back to the %s rule\n", opts.Exercise, e.Rule().Name)
	}
	return e, nil
}

// session couples an engine with its tally so both commands feed results the same way.
type session struct {
	engine  *engine.Engine
	tally   *tally.Tally
	verbose bool
	out     io.Writer
	rng     *rand.Rand
}

func newSession(e *engine.Engine, opts Options) *session {
	seed := uint64(time.Now().UnixNano())
	return &session{
		engine:  e,
		tally:   tally.New(opts.Exercise, opts.KcalPerRep),
		verbose: opts.Verbose,
		out:     os.Stderr,
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

func (s *session) feed(tsMS int64, res types.AnalysisResult) {
	ev, ok := s.tally.Add(tsMS, res)
	if !ok || !s.verbose {
		return
	}
	s.announce(ev)
}

func (s *session) announce(ev tally.Event) {
	switch ev.Kind {
	case tally.RepEvent:
		msg := ev.Message
		if msg == s.engine.Rule().Affirmation {
			_, msg = tally.Feedback(s.rng)
		}
		fmt.Fprintf(s.out, "\n✅ Rep %d [%s] score %d: %s\n", ev.Rep, ev.Tier, ev.Score, msg)
	case tally.CorrectionEvent:
		fmt.Fprintf(s.out, "\n⚠️  %s (score %d)\n", ev.Message, ev.Score)
	}
}

// finish prints the summary and persists it when requested.
func (s *session) finish(ctx context.Context, opts Options, malformed int) error {
	for range opts.ManualReps {
		ev := s.tally.AddManualRep(s.rng)
		if s.verbose {
			s.announce(ev)
		}
	}
	fmt.Println(report.Summary(s.tally, s.engine.Rule().Name, malformed, 0))

	if !opts.Save {
		return nil
	}
	sourceID, err := utils.GenerateSourceID(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to generate source ID: %w", err)
	}
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	id, err := db.SaveSession(ctx, sessionRecord(s.tally, sourceID, opts.InputPath))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	fmt.Fprintf(os.Stderr, "💾 Session saved: %s\n", id)
	return nil
}

// sessionRecord converts a finished tally into its stored form.
func sessionRecord(t *tally.Tally, sourceID, path string) store.Session {
	issues := make(map[string]int, len(t.Issues))
	for k, n := range t.Issues {
		issues[string(k)] = n
	}
	return store.Session{
		Exercise:   t.Exercise,
		SourceID:   sourceID,
		SourcePath: path,
		Reps:       t.Reps,
		AvgScore:   t.AverageScore(),
		MinScore:   t.Lowest(),
		Calories:   t.Calories(),
		Samples:    t.Analyzed,
		OutOfFrame: t.OutOfFrame,
		DurationMS: t.DurationMS(),
		Issues:     issues,
	}
}

func runAnalyze(ctx context.Context, opts Options) error {
	if err := validateSessionFlags(&opts); err != nil {
		utils.ShowError("Invalid arguments", err, nil)
		return err
	}

	e, err := buildEngine(opts)
	if err != nil {
		utils.ShowError("Failed to load rules", err, nil)
		return err
	}

	total, err := samples.CountLines(opts.InputPath)
	if err != nil || total == 0 {
		total = -1
	}

	f, err := os.Open(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to open samples: %w", err)
	}
	defer f.Close()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🏋️ Analyzing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	sess := newSession(e, opts)
	reader := samples.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			bar.Exit()
			return fmt.Errorf("analysis interrupted: %w", err)
		}

		sample, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			bar.Exit()
			utils.ShowError("Failed to read samples", err, nil)
			return err
		}

		sess.feed(sample.TimestampMS, e.Analyze(sample))
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if n := reader.Malformed(); n > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Skipped %d malformed line(s), last: %v\n", n, reader.LastError())
	}

	return sess.finish(ctx, opts, reader.Malformed())
}
