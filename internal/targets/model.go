package targets

import "fmt"

// Target identifies one container log stream to follow. It is immutable
// once matched; discovery derives it from the live pod listing.
type Target struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
}

// LogFileName is the per-target output file name inside the run directory.
// Namespace, pod and container names cannot contain path separators, so the
// name is filesystem-safe and unique per triple.
func (t Target) LogFileName() string {
	return fmt.Sprintf("%s_%s_%s.log", t.Namespace, t.Pod, t.Container)
}

func (t Target) String() string {
	return t.Namespace + "/" + t.Pod + "/" + t.Container
}

// Match pairs a Target with the pod state observed when it matched.
type Match struct {
	Target

	Node     string `json:"node"`
	Phase    string `json:"phase"`
	Restarts int32  `json:"restarts"`
	Age      string `json:"age"`
}
