package event

import "github.com/google/uuid"

// ProgressRangeRead reports bytes of one range written to the destination file.
type ProgressRangeRead struct {
	JobID uuid.UUID
	Range int
	Bytes int
}

func NewProgressRangeRead(jobID uuid.UUID, rangeIndex, bytesRead int) *ProgressRangeRead {
	return &ProgressRangeRead{
		JobID: jobID,
		Range: rangeIndex,
		Bytes: bytesRead,
	}
}
