package store

// Keys builds the store key namespaces. Every key except the data-uploader
// session set is prefixed with the deployment base key so multiple
// deployments can share one Redis instance.
type Keys struct {
	base string
}

func NewKeys(baseKey string) Keys {
	if baseKey == "" {
		baseKey = "base"
	}
	return Keys{base: baseKey}
}

func (k Keys) prefix() string {
	return k.base + ":relia:scheduler"
}

// Tasks is the membership set of every task identifier ever attempted.
func (k Keys) Tasks() string {
	return k.prefix() + ":tasks"
}

// Task is the per-task field hash.
func (k Keys) Task(id string) string {
	return k.prefix() + ":tasks:" + id
}

// PriorityQueue is the FIFO bucket for one priority value.
func (k Keys) PriorityQueue(priority string) string {
	return k.prefix() + ":tasks:queues:" + priority
}

// Priorities is the sorted set indexing which buckets have ever held a task.
func (k Keys) Priorities() string {
	return k.prefix() + ":priorities"
}

// DeviceLastCheck holds the last heartbeat timestamp of one device role.
func (k Keys) DeviceLastCheck(deviceID string) string {
	return k.prefix() + ":devices:" + deviceID + ":last_check"
}

// DeviceLastCheckPattern matches every device heartbeat key.
func (k Keys) DeviceLastCheckPattern() string {
	return k.prefix() + ":devices:*:last_check"
}

// DeviceAssignment points a device base at its currently bound task.
func (k Keys) DeviceAssignment(deviceBase string) string {
	return k.prefix() + ":devices:" + deviceBase + ":assigned_task"
}

// Credentials maps device base names to salt$hash entries.
func (k Keys) Credentials() string {
	return k.prefix() + ":device-credentials"
}

// Errors is the membership set of error record identifiers.
func (k Keys) Errors() string {
	return k.prefix() + ":errors"
}

// Error is the per-record field hash.
func (k Keys) Error(id string) string {
	return k.prefix() + ":errors:" + id
}

// SessionDevices is the data-uploader's set of devices seen for a session.
// The uploader owns this namespace, so it is not base-key prefixed.
func SessionDevices(sessionID string) string {
	return "relia:data-uploader:sessions:" + sessionID + ":devices"
}
