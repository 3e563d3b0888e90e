// Package tally accumulates per-sample analysis results into a workout
// session: repetitions, scores, issue counts and calories.
package tally

import (
	"math/rand/v2"
	"sort"

	"github.com/andresmejia3/formcheck/internal/types"
)

const (
	PerfectScore = 90
	GoodScore    = 70

	caloriesDivisor = 10
)

// Tier grades a repetition for the coaching banner.
type Tier string

const (
	Perfect     Tier = "PERFECT"
	Good        Tier = "GOOD"
	CorrectForm Tier = "CORRECT_FORM"
)

// TierFor maps a form score to its tier.
func TierFor(score int) Tier {
	switch {
	case score >= PerfectScore:
		return Perfect
	case score >= GoodScore:
		return Good
	default:
		return CorrectForm
	}
}

var affirmations = []struct {
	tier Tier
	msg  string
}{
	{Perfect, "Excellent! Perfect technique! 💪"},
	{Good, "Good! Keep it up! 👍"},
	{CorrectForm, "Correct form! ✅"},
}

// Feedback picks a random affirmation. Pass a seeded source for reproducible output.
func Feedback(r *rand.Rand) (Tier, string) {
	a := affirmations[r.IntN(len(affirmations))]
	return a.tier, a.msg
}

// EventKind says why an Event was raised.
type EventKind int

const (
	RepEvent EventKind = iota
	CorrectionEvent
)

// Event is something worth showing the athlete right now.
type Event struct {
	Kind    EventKind
	Tier    Tier
	Message string
	Rep     int
	Score   int
}

// Tally is the running state of one session. The zero value is not usable; call New.
type Tally struct {
	Exercise   string
	KcalPerRep int

	Reps       int
	Analyzed   int
	OutOfFrame int
	Correct    int
	LastScore  int
	MinScore   int
	RepScores  []int
	Issues     map[types.IssueKind]int

	scoreSum int
	firstTS  int64
	lastTS   int64
	seenTS   bool
}

// New starts an empty session.
func New(exercise string, kcalPerRep int) *Tally {
	return &Tally{
		Exercise:   exercise,
		KcalPerRep: kcalPerRep,
		MinScore:   100,
		Issues:     make(map[types.IssueKind]int),
	}
}

// Add folds one result into the session. tsMS is the sample timestamp.
// It returns an event when a repetition completes, or when the form drops
// below the good threshold with a concrete issue to correct.
func (t *Tally) Add(tsMS int64, res types.AnalysisResult) (Event, bool) {
	if !t.seenTS {
		t.firstTS, t.seenTS = tsMS, true
	}
	t.lastTS = tsMS

	// Scores only reach 0 through penalties, so a zero score without issues is the out-of-frame result.
	if len(res.Issues) == 0 && res.FormScore == 0 && !res.RepDetected {
		t.OutOfFrame++
		return Event{}, false
	}

	t.Analyzed++
	t.scoreSum += res.FormScore
	t.LastScore = res.FormScore
	if res.FormScore < t.MinScore {
		t.MinScore = res.FormScore
	}
	if res.IsCorrectForm {
		t.Correct++
	}
	for _, iss := range res.Issues {
		t.Issues[iss.Kind]++
	}

	if res.RepDetected {
		t.Reps++
		t.RepScores = append(t.RepScores, res.FormScore)
		return Event{Kind: RepEvent, Tier: TierFor(res.FormScore), Message: res.Feedback, Rep: t.Reps, Score: res.FormScore}, true
	}
	if len(res.Issues) > 0 && res.FormScore < GoodScore {
		return Event{Kind: CorrectionEvent, Tier: TierFor(res.FormScore), Message: res.Issues[0].Description, Rep: t.Reps, Score: res.FormScore}, true
	}
	return Event{}, false
}

// AddManualRep counts a repetition the athlete logged by hand.
func (t *Tally) AddManualRep(r *rand.Rand) Event {
	t.Reps++
	tier, msg := Feedback(r)
	return Event{Kind: RepEvent, Tier: tier, Message: msg, Rep: t.Reps, Score: t.LastScore}
}

// Calories uses whole kilocalories, as shown to the athlete.
func (t *Tally) Calories() int {
	return t.Reps * t.KcalPerRep / caloriesDivisor
}

// AverageScore is the mean score over analyzed samples, 0 if there were none.
func (t *Tally) AverageScore() float64 {
	if t.Analyzed == 0 {
		return 0
	}
	return float64(t.scoreSum) / float64(t.Analyzed)
}

// Lowest returns the minimum score, 0 if nothing was analyzed.
func (t *Tally) Lowest() int {
	if t.Analyzed == 0 {
		return 0
	}
	return t.MinScore
}

// DurationMS is the span between the first and last sample.
func (t *Tally) DurationMS() int64 {
	return t.lastTS - t.firstTS
}

// IssueCount is one row of the issue histogram.
type IssueCount struct {
	Kind  types.IssueKind
	Count int
}

// TopIssues returns the histogram ordered by count, most frequent first.
func (t *Tally) TopIssues() []IssueCount {
	out := make([]IssueCount, 0, len(t.Issues))
	for k, n := range t.Issues {
		out = append(out, IssueCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
