// ABOUTME: Translation from provider raw deltas to wire frames
// ABOUTME: One delta maps to at most one frame; internal bookkeeping deltas map to none

package wire

import (
	"github.com/magicloops/budchat/internal/provider"
)

// FromDelta translates one provider delta into the frame streamed to
// clients. ok=false means the delta has no client-visible frame
// (StreamDone and StreamError terminate through dedicated paths).
func FromDelta(eventID string, d provider.RawDelta) (Frame, bool) {
	switch d := d.(type) {
	case provider.TextDelta:
		return Frame{Type: TypeToken, EventID: eventID, Text: d.Text}, true
	case provider.ToolCallStart:
		return Frame{Type: TypeToolStart, EventID: eventID, ToolID: d.ID, ToolName: d.Name, Sequence: d.Sequence}, true
	case provider.ToolCallArgsDelta:
		return Frame{Type: TypeToolArgsDelta, EventID: eventID, ToolID: d.ID, ArgsDelta: d.Delta, Sequence: d.Sequence}, true
	case provider.ToolCallDone:
		return Frame{Type: TypeToolFinalized, EventID: eventID, ToolID: d.ID, Args: []byte(d.Args), Sequence: d.Sequence}, true
	case provider.ReasoningStart:
		return Frame{Type: TypeReasoningStart, EventID: eventID, ItemID: d.ID, Sequence: d.Sequence}, true
	case provider.ReasoningSummaryDelta:
		return Frame{Type: TypeReasoningSummaryDelta, EventID: eventID, ItemID: d.ID,
			SummaryIndex: d.SummaryIndex, Text: d.Text, Sequence: d.Sequence}, true
	case provider.ReasoningSummaryDone:
		return Frame{Type: TypeReasoningSummaryDone, EventID: eventID, ItemID: d.ID,
			SummaryIndex: d.SummaryIndex, Sequence: d.Sequence}, true
	case provider.ReasoningDone:
		return Frame{Type: TypeReasoningComplete, EventID: eventID, ItemID: d.ID,
			CombinedText: d.CombinedText, Sequence: d.Sequence}, true
	case provider.BuiltInToolStatus:
		typ := TypeBuiltInToolStatus
		switch d.Status {
		case "in_progress":
			typ = TypeBuiltInToolStart
		case "completed":
			typ = TypeBuiltInToolDone
		}
		return Frame{Type: typ, EventID: eventID, ToolID: d.ID, Kind: string(d.Kind), Status: d.Status, Sequence: d.Sequence}, true
	case provider.CodeDelta:
		return Frame{Type: TypeBuiltInCodeDelta, EventID: eventID, ToolID: d.ID, Code: d.Code, Sequence: d.Sequence}, true
	}
	return Frame{}, false
}
