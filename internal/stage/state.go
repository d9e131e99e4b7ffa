package stage

import "fmt"

// Step is the fine-grained position inside a stage.
type Step int

const (
	StepAwaitingChoice Step = iota + 1 // quiz option pending
	StepAwaitingVerdict                // know / don't know pending
	StepAwaitingText                   // free-text submission pending
	StepAnalyzing                      // writing analysis in flight
	StepShowingAnalysis                // analysis shown, waiting for continue
	StepGenerating                     // drill text in flight
	StepAwaitingAnswer                 // comprehension answer pending
	StepAwaitingTriage                 // add / skip for a bonus word pending
	StepFinished
)

var stepNames = map[Step]string{
	StepAwaitingChoice:  "awaiting_choice",
	StepAwaitingVerdict: "awaiting_verdict",
	StepAwaitingText:    "awaiting_text",
	StepAnalyzing:       "analyzing",
	StepShowingAnalysis: "showing_analysis",
	StepGenerating:      "generating",
	StepAwaitingAnswer:  "awaiting_answer",
	StepAwaitingTriage:  "awaiting_triage",
	StepFinished:        "finished",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// stageTable lists, per stage, its entry step and the legal step-to-step moves.
// A step that does not appear under a stage can never be paired with it.
var stageTable = map[Stage]struct {
	entry Step
	moves map[Step][]Step
}{
	Quiz: {
		entry: StepAwaitingChoice,
		moves: map[Step][]Step{StepAwaitingChoice: {StepAwaitingChoice}},
	},
	KnowDontKnow: {
		entry: StepAwaitingVerdict,
		moves: map[Step][]Step{StepAwaitingVerdict: {StepAwaitingVerdict}},
	},
	WritingTask: {
		entry: StepAwaitingText,
		moves: map[Step][]Step{StepAwaitingText: nil},
	},
	WritingAnalysis: {
		entry: StepAnalyzing,
		moves: map[Step][]Step{
			StepAnalyzing:       {StepShowingAnalysis},
			StepShowingAnalysis: nil,
		},
	},
	TextDrill: {
		entry: StepGenerating,
		moves: map[Step][]Step{
			StepGenerating:     {StepAwaitingAnswer},
			StepAwaitingAnswer: {StepAwaitingAnswer},
		},
	},
	VocabConsolidation: {
		entry: StepAwaitingTriage,
		moves: map[Step][]Step{StepAwaitingTriage: {StepAwaitingTriage}},
	},
	Done: {
		entry: StepFinished,
		moves: map[Step][]Step{StepFinished: nil},
	},
}

// State is a legal (stage, step) pair. The zero value is not a valid state;
// states are only obtained through Enter, Advance and NextStage.
type State struct {
	stage Stage
	step  Step
}

// Enter returns the entry state of s.
func Enter(s Stage) (State, error) {
	row, ok := stageTable[s]
	if !ok {
		return State{}, fmt.Errorf("unknown stage %v", s)
	}
	return State{stage: s, step: row.entry}, nil
}

// MustEnter is Enter for stages known at compile time.
func MustEnter(s Stage) State {
	st, err := Enter(s)
	if err != nil {
		panic(err)
	}
	return st
}

func (st State) Stage() Stage { return st.stage }
func (st State) Step() Step   { return st.step }
func (st State) IsZero() bool { return st.stage == 0 }

func (st State) String() string {
	return st.stage.String() + "/" + st.step.String()
}

// Advance moves to step within the current stage.
func (st State) Advance(step Step) (State, error) {
	row, ok := stageTable[st.stage]
	if !ok {
		return st, fmt.Errorf("unknown stage %v", st.stage)
	}
	for _, to := range row.moves[st.step] {
		if to == step {
			return State{stage: st.stage, step: step}, nil
		}
	}
	return st, fmt.Errorf("illegal move %v -> %v", st, step)
}

// NextStage leaves the current stage and enters the following one.
func (st State) NextStage() (State, error) {
	next, ok := st.stage.Next()
	if !ok {
		return st, fmt.Errorf("%v is the final stage", st.stage)
	}
	return Enter(next)
}

// Legal reports whether step may be paired with stage.
func Legal(s Stage, step Step) bool {
	row, ok := stageTable[s]
	if !ok {
		return false
	}
	_, ok = row.moves[step]
	return ok
}
