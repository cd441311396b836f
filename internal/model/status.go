package model

type RecordStatus string

const (
	StatusOK      RecordStatus = "OK"
	StatusFail    RecordStatus = "FAIL"
	StatusTimeout RecordStatus = "TIMEOUT"
)

type BatchStatus string

const (
	BatchNeverRun BatchStatus = "NEVER_RUN"
	BatchRunning  BatchStatus = "RUNNING"
	BatchAllOK    BatchStatus = "ALL_OK"
	BatchHasFail  BatchStatus = "HAS_FAIL"
)

// process exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitDiagPartial = 2
)
