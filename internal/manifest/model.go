package manifest

// FileName is the manifest written into every run directory.
const FileName = "targets.json"

// Manifest records what a session decided to tail and why, so a run
// directory stays interpretable after the fact.
type Manifest struct {
	StartedAt  string   `json:"startedAt"`
	Kubeconfig string   `json:"kubeconfig,omitempty"`
	Filters    Filters  `json:"filters"`
	Policies   Policies `json:"policies"`
	Targets    []Entry  `json:"targets"`
}

// Filters holds the raw regular expressions the session was started with.
type Filters struct {
	Namespaces []string `json:"namespaces,omitempty"`
	Pods       []string `json:"pods,omitempty"`
	Containers []string `json:"containers,omitempty"`
}

// Policies holds the stream behavior toggles in effect for the session.
type Policies struct {
	Watch     bool   `json:"watch"`
	Reconnect bool   `json:"reconnect"`
	Since     string `json:"since,omitempty"`
	TailLines *int64 `json:"tailLines,omitempty"`
}

// Entry describes one tailed container and the pod state at match time.
// CPU and memory come from the metrics API and stay empty when it is not
// installed.
type Entry struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
	File      string `json:"file"`

	Node     string `json:"node,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Restarts int32  `json:"restarts"`
	Age      string `json:"age,omitempty"`

	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}
