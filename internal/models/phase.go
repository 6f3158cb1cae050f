package models

// Phase is an observable checkpoint of document processing.
type Phase string

const (
	PhaseNone      Phase = ""
	PhaseRead      Phase = "read"
	PhaseDetect    Phase = "detect"
	PhaseExtract   Phase = "extract"
	PhaseNormalize Phase = "normalize"
	PhaseAggregate Phase = "aggregate"
	PhaseDone      Phase = "done"
)
