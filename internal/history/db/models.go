package db

type BatchRun struct {
	RunID      string
	Status     string
	Passed     int64
	Total      int64
	DurationMs int64
	Pid        int64
	StartedAt  int64
	FinishedAt int64
}

type JobRun struct {
	ID         int64
	RunID      string
	Job        string
	Status     string
	DurationMs int64
	Attempts   int64
	Note       string
	RecordedAt int64
}
