package pipeline

// Stage is a state of a single pipeline run
type Stage string

const (
	StageAuthorizing  Stage = "authorizing"
	StageTranscribing Stage = "transcribing"
	StageTranslating  Stage = "translating"
	StageSummarizing  Stage = "summarizing"
	StageSynthesizing Stage = "synthesizing"
	StageLogging      Stage = "logging"
	StageDone         Stage = "done"
	StageDegrading    Stage = "degrading"
	StageFatal        Stage = "fatal"
)

// IsTerminal reports whether no further transition follows s
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFatal
}

// Degradable reports whether a failure in s is answered with the spoken apology
func (s Stage) Degradable() bool {
	switch s {
	case StageTranscribing, StageTranslating, StageSummarizing:
		return true
	}
	return false
}
