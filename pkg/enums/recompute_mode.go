package enums

// RecomputeMode identifies which recompute entry point produced a run.
type RecomputeMode string

const (
	RecomputeModeFull        RecomputeMode = "full"
	RecomputeModeIncremental RecomputeMode = "incremental"
)
