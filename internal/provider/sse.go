// ABOUTME: Shared SSE consumption for vendor streams
// ABOUTME: Yields (event, data) pairs; vendor adapters interpret the payloads

package provider

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one server-sent event from a vendor stream. Name is empty
// for data-only streams (OpenAI chat completions).
type SSEEvent struct {
	Name string
	Data string
}

// ReadSSE consumes r line by line and invokes fn for each complete event.
// Multi-line data fields are joined with newlines. Returns the first read
// error other than EOF.
func ReadSSE(r io.Reader, fn func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data []string

	flush := func() error {
		if len(data) == 0 {
			name = ""
			return nil
		}
		ev := SSEEvent{Name: name, Data: strings.Join(data, "\n")}
		name = ""
		data = data[:0]
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(line[len("data:"):]))
		default:
			// Comment or unknown field - ignored per the SSE spec.
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return scanner.Err()
}
