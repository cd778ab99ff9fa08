package model

// CrawlTask is a single unit of traversal work: a URL to fetch at a given depth.
// Tasks are created by the traversal engine when a link is discovered and are
// consumed exactly once.
type CrawlTask struct {
	// URL is the absolute http(s) URL to fetch.
	URL string `json:"url"`

	// Depth is the number of link hops from the seed URL.
	// The seed itself has depth 0.
	Depth int `json:"depth"`
}

// TaskState is the lifecycle state of a CrawlTask.
//
// The transitions are:
//
//	Pending -> Skipped                 (depth bound exceeded or URL already visited)
//	Pending -> Dispatched -> Completed (fetch succeeded, children enqueued)
//	Pending -> Dispatched -> Failed    (fetch failed, no expansion)
type TaskState int

const (
	// TaskPending is a discovered task waiting in the frontier.
	TaskPending TaskState = iota

	// TaskDispatched is a task handed to a worker.
	TaskDispatched

	// TaskCompleted is a task whose page was fetched and analyzed.
	TaskCompleted

	// TaskSkipped is a task rejected by the depth or dedup gate.
	TaskSkipped

	// TaskFailed is a task whose fetch failed. Failure never aborts the crawl.
	TaskFailed
)

// String returns a human-readable representation of the task state.
func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskDispatched:
		return "dispatched"
	case TaskCompleted:
		return "completed"
	case TaskSkipped:
		return "skipped"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can happen from s.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskSkipped || s == TaskFailed
}

// MarshalText implements encoding.TextMarshaler so states serialize by name.
func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TaskOutcome records how a dispatched task ended.
// Skipped tasks are counted in CrawlStats but not recorded individually,
// because a popular link may be rediscovered hundreds of times.
type TaskOutcome struct {
	// Task is the task that reached a terminal state.
	Task CrawlTask `json:"task"`

	// State is TaskCompleted or TaskFailed.
	State TaskState `json:"state"`

	// StatusCode is the HTTP status of the fetch, 0 if no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Error describes the failure for TaskFailed outcomes.
	Error string `json:"error,omitempty"`
}
