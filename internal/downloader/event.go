package downloader

// Event represents a lifecycle change or progress update from a downloader.
//
// Terminal events (Succeeded, Failed, Cancelled) end the job; the lifecycle
// manager detaches the handle they belong to. Progress events carry transient
// information and never change title state.
type Event struct {
	HandleID string
	TitleID  string
	Type     EventType
	// Reason is set on Failed events.
	Reason   string
	Progress *Progress
}

// EventType defines the set of events that downloaders may emit.
type EventType string

const (
	EventStart     EventType = "Start"
	EventPaused    EventType = "Paused"
	EventResumed   EventType = "Resumed"
	EventProgress  EventType = "Progress"
	EventSucceeded EventType = "Succeeded"
	EventFailed    EventType = "Failed"
	EventCancelled EventType = "Cancelled"
)

// Terminal reports whether the event ends its job.
func (t EventType) Terminal() bool {
	return t == EventSucceeded || t == EventFailed || t == EventCancelled
}

// Progress provides optional details about an in-progress operation.
type Progress struct {
	Percent float64
	// Downloaded and Total are in bytes; zero when the backend did not report them.
	Downloaded int64
	Total      int64
}
