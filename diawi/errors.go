package diawi

import "fmt"

// UploadRejectedError means Diawi did not accept the upload request and did
// not start a processing job.
type UploadRejectedError struct {
	Message string
}

func (e *UploadRejectedError) Error() string {
	if e.Message == "" {
		return "Diawi rejected the upload"
	}
	return fmt.Sprintf("Diawi rejected the upload: %s", e.Message)
}

// ProcessingFailedError means Diawi received the app but could not process it.
type ProcessingFailedError struct {
	Message string
}

func (e *ProcessingFailedError) Error() string {
	return fmt.Sprintf("Diawi could not process the app: %s", e.Message)
}

// UnknownStatusError means the status endpoint returned a status code this
// client does not recognize.
type UnknownStatusError struct {
	Status int
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("Diawi returned an unknown status: %d", e.Status)
}

// TimeoutError means the job was still in progress when the status check
// budget ran out.
type TimeoutError struct {
	StatusChecks int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("app was still being processed after %d status checks", e.StatusChecks)
}
