// ABOUTME: Token-aware truncation of oversized tool outputs
// ABOUTME: Caps re-fed output at 50 KB and reports the approximate token count dropped

package tools

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// MaxToolOutputBytes caps how much tool output re-enters the model
// context. Outputs over the cap are cut at a rune boundary and suffixed
// with a truncation notice.
const MaxToolOutputBytes = 50 * 1024

var (
	encOnce sync.Once
	encoder *tiktoken.Tiktoken
)

// tokenCount approximates the token count of s. Encoder init can fail
// offline; fall back to the bytes/4 rule of thumb.
func tokenCount(s string) int {
	encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		encoder = enc
	})
	if encoder == nil {
		return len(s) / 4
	}
	return len(encoder.Encode(s, nil, nil))
}

// TruncateOutput bounds a tool output before it re-enters the model.
// Returns the output unchanged when under the cap; otherwise returns the
// leading MaxToolOutputBytes (backed off to a rune boundary) plus a
// notice naming the original size and approximate token count.
func TruncateOutput(output string) (string, bool) {
	if len(output) <= MaxToolOutputBytes {
		return output, false
	}

	cut := MaxToolOutputBytes
	for cut > 0 && !utf8.RuneStart(output[cut]) {
		cut--
	}

	notice := fmt.Sprintf(
		"\n\n[output truncated: %d bytes (~%d tokens) exceeded the %d byte limit]",
		len(output), tokenCount(output), MaxToolOutputBytes,
	)
	return output[:cut] + notice, true
}
