package export

// Status is the terminal state of one export run.
type Status string

const (
	// StatusNoData means the store held no measurements; the device was
	// never opened.
	StatusNoData Status = "no_data"

	// StatusSucceeded means every measurement was written.
	StatusSucceeded Status = "succeeded"

	// StatusCancelled means the run was stopped at a page boundary. The
	// footer was still written and the device closed, so the output is a
	// valid, truncated document.
	StatusCancelled Status = "cancelled"

	// StatusFailed means the run aborted on a device or store error.
	StatusFailed Status = "failed"
)

// Reason narrows down a failed export.
type Reason string

const (
	ReasonUnknown             Reason = "unknown"
	ReasonLocationNotWritable Reason = "location_not_writable"
	ReasonDeviceNotAvailable  Reason = "device_not_available"
)

// Result describes how one export run ended. Reason and Message are only
// set for StatusFailed.
type Result struct {
	Status  Status `json:"status"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}
