package stage

import "fmt"

// Stage is a position in the Smart Repeat pipeline.
type Stage int

const (
	Quiz Stage = iota + 1
	KnowDontKnow
	WritingTask
	WritingAnalysis
	TextDrill
	VocabConsolidation
	Done
)

// Order is the fixed pipeline order.
var Order = []Stage{Quiz, KnowDontKnow, WritingTask, WritingAnalysis, TextDrill, VocabConsolidation, Done}

var stageNames = map[Stage]string{
	Quiz:               "quiz",
	KnowDontKnow:       "know_dont_know",
	WritingTask:        "writing_task",
	WritingAnalysis:    "writing_analysis",
	TextDrill:          "text_drill",
	VocabConsolidation: "vocab_consolidation",
	Done:               "done",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Parse converts a persisted stage name back to a Stage.
func Parse(name string) (Stage, bool) {
	for s, n := range stageNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Valid reports whether s is one of the pipeline stages.
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// Critical reports whether an idle session in this stage is mid-way through a
// multi-turn exchange and gets the extended idle timeout.
func (s Stage) Critical() bool {
	switch s {
	case Quiz, WritingTask, WritingAnalysis, TextDrill:
		return true
	}
	return false
}

// Next returns the stage following s. Done has no successor.
func (s Stage) Next() (Stage, bool) {
	for i, st := range Order {
		if st == s && i+1 < len(Order) {
			return Order[i+1], true
		}
	}
	return 0, false
}
