package names

const (
	Filter   = "filter"
	Extract  = "extract"
	Critique = "critique"
	Curate   = "curate"
	Pipeline = "pipeline"
)
