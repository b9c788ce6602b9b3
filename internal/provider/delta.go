// ABOUTME: RawDelta closed union - the normalized form of vendor stream events
// ABOUTME: Carries vendor sequence numbers and indices verbatim, never renumbered

package provider

// RawDelta is one incremental event from a vendor stream, normalized only
// enough to be ordered. Sequence numbers come from the vendor verbatim and
// are used strictly as a stable sort key downstream; vendors without
// sequence numbers leave them zero and rely on arrival order.
type RawDelta interface {
	rawDelta()
}

// TextDelta is a raw text fragment, appended verbatim in arrival order.
type TextDelta struct {
	Text     string
	Sequence int
}

// ToolCallStart opens a tool call. Index is the vendor's slot for the
// call (OpenAI chat streams arguments by index, not id).
type ToolCallStart struct {
	Index    int
	ID       string
	Name     string
	Sequence int
}

// ToolCallArgsDelta appends a fragment of the call's argument JSON.
type ToolCallArgsDelta struct {
	Index    int
	ID       string
	Delta    string
	Sequence int
}

// ToolCallDone closes a tool call's argument stream. Args, when non-empty,
// is the vendor's authoritative full argument JSON and replaces whatever
// was accumulated.
type ToolCallDone struct {
	Index    int
	ID       string
	Args     string
	Sequence int
}

// ReasoningStart opens a reasoning segment.
type ReasoningStart struct {
	ID          string
	OutputIndex int
	Effort      string
	Sequence    int
}

// ReasoningSummaryDelta appends text to one reasoning part, keyed by
// SummaryIndex. Parts may interleave.
type ReasoningSummaryDelta struct {
	ID           string
	SummaryIndex int
	Text         string
	Sequence     int
}

// ReasoningSummaryDone completes one reasoning part. Text, when non-empty,
// is the vendor's authoritative full part text.
type ReasoningSummaryDone struct {
	ID           string
	SummaryIndex int
	Text         string
	Sequence     int
}

// ReasoningDone closes the reasoning segment. CombinedText, when supplied
// by the vendor, takes precedence over the joined parts.
type ReasoningDone struct {
	ID           string
	CombinedText string
	Sequence     int
}

// BuiltInKind distinguishes vendor-managed tool invocations.
type BuiltInKind string

const (
	BuiltInWebSearch       BuiltInKind = "web_search"
	BuiltInCodeInterpreter BuiltInKind = "code_interpreter"
)

// BuiltInToolStatus reports a status transition of a vendor built-in tool
// call (in_progress, searching, interpreting, completed).
type BuiltInToolStatus struct {
	ID       string
	Kind     BuiltInKind
	Status   string
	Sequence int
}

// CodeDelta appends a fragment of code-interpreter code.
type CodeDelta struct {
	ID       string
	Code     string
	Sequence int
}

// StreamDone marks normal end of the vendor stream.
type StreamDone struct{}

// StreamError carries a vendor stream failure. The turn terminates; there
// is no retry at this layer.
type StreamError struct {
	Err error
}

func (TextDelta) rawDelta()             {}
func (ToolCallStart) rawDelta()         {}
func (ToolCallArgsDelta) rawDelta()     {}
func (ToolCallDone) rawDelta()          {}
func (ReasoningStart) rawDelta()        {}
func (ReasoningSummaryDelta) rawDelta() {}
func (ReasoningSummaryDone) rawDelta()  {}
func (ReasoningDone) rawDelta()         {}
func (BuiltInToolStatus) rawDelta()     {}
func (CodeDelta) rawDelta()             {}
func (StreamDone) rawDelta()            {}
func (StreamError) rawDelta()           {}
