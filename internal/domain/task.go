package domain

import (
	"fmt"
	"time"
)

// TaskStatus is the closed set of lifecycle states a task can be in.
// Values are stored verbatim in the task hash, so they must stay stable.
type TaskStatus string

const (
	StatusQueued                     TaskStatus = "queued"
	StatusReceiverAssigned           TaskStatus = "receiver-assigned"
	StatusFullyAssigned              TaskStatus = "fully-assigned"
	StatusReceiverStillProcessing    TaskStatus = "receiver-still-processing"
	StatusTransmitterStillProcessing TaskStatus = "transmitter-still-processing"
	StatusCompleted                  TaskStatus = "completed"
	StatusDeleted                    TaskStatus = "deleted"
	StatusError                      TaskStatus = "error"
)

// ParseStatus rejects unknown status strings at the store-read boundary
// instead of letting them flow through comparisons silently.
func ParseStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(s); st {
	case StatusQueued, StatusReceiverAssigned, StatusFullyAssigned,
		StatusReceiverStillProcessing, StatusTransmitterStillProcessing,
		StatusCompleted, StatusDeleted, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Terminal reports whether no further transition is permitted.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDeleted || s == StatusError
}

// Null marks an unset string field in the task hash.
const Null = "null"

// ISOTime is the timestamp layout used in task and error hashes, matching
// the format the backend and the data uploader already consume.
const ISOTime = "2006-01-02T15:04:05.000000"

// Task hash field names. The set of fields is the persisted contract with
// the store; renaming one orphans every task already in Redis.
const (
	FieldUniqueIdentifier           = "uniqueIdentifier"
	FieldAuthor                     = "author"
	FieldTransmitterFile            = "transmitterFile"
	FieldReceiverFile               = "receiverFile"
	FieldTransmitterFilename        = "transmitterFilename"
	FieldReceiverFilename           = "receiverFilename"
	FieldTransmitterFiletype        = "transmitterFiletype"
	FieldReceiverFiletype           = "receiverFiletype"
	FieldSessionID                  = "sessionId"
	FieldStartedTime                = "startedTime"
	FieldPriority                   = "priority"
	FieldTransmitterAssigned        = "transmitterAssigned"
	FieldReceiverAssigned           = "receiverAssigned"
	FieldDeviceAssigned             = "deviceAssigned"
	FieldTransmitterProcessingStart = "transmitterProcessingStart"
	FieldReceiverProcessingStart    = "receiverProcessingStart"
	FieldStatus                     = "status"
	FieldErrorMessage               = "errorMessage"
	FieldErrorTime                  = "errorTime"
	FieldLocalTimeRemaining         = "localTimeRemaining"
	FieldInactiveSince              = "inactiveSince"
)

// Payload is one half of a task: the flowgraph file one device role runs.
type Payload struct {
	Filename string
	Content  string
	Type     string
}

// Task is a scheduled job pairing a receiver payload with a transmitter
// payload on one physical device setup.
type Task struct {
	ID                  string
	Author              string
	Receiver            Payload
	Transmitter         Payload
	SessionID           string
	Priority            int
	Status              TaskStatus
	ReceiverAssigned    string
	TransmitterAssigned string
	DeviceAssigned      string
	CreatedAt           time.Time
	ErrorMessage        string
	ErrorTime           string
}
