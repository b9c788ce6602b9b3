// ABOUTME: Base pack provides small local tools every conversation gets: time, uuid, random.
// ABOUTME: Served in-process through a tools.StaticServer, no network round trip.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/magicloops/budchat/internal/provider"
	"github.com/magicloops/budchat/internal/tools"
)

// BaseServer creates the base tool server with current_time, generate_uuid,
// and random_number.
func BaseServer() *tools.StaticServer {
	return tools.NewStaticServer("builtin:base").
		Add(provider.ToolSpec{
			Name:        "current_time",
			Description: "Get the current date and time, optionally in a named timezone",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"timezone":{"type":"string","description":"IANA timezone name, e.g. America/New_York"}}}`),
		}, currentTime).
		Add(provider.ToolSpec{
			Name:        "generate_uuid",
			Description: "Generate a random UUID",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		}, generateUUID).
		Add(provider.ToolSpec{
			Name:        "random_number",
			Description: "Generate a random integer in an inclusive range",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"min":{"type":"integer"},"max":{"type":"integer"}},"required":["min","max"]}`),
		}, randomNumber)
}

func currentTime(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Timezone string `json:"timezone"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	loc := time.Local
	if in.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(in.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", in.Timezone)
		}
	}

	now := time.Now().In(loc)
	return json.Marshal(map[string]string{
		"time":     now.Format(time.RFC3339),
		"timezone": loc.String(),
		"weekday":  now.Weekday().String(),
	})
}

func generateUUID(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"uuid": uuid.NewString()})
}

func randomNumber(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Min int64 `json:"min"`
		Max int64 `json:"max"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if in.Max < in.Min {
		return nil, fmt.Errorf("max %d is less than min %d", in.Max, in.Min)
	}

	n := in.Min + rand.Int63n(in.Max-in.Min+1)
	return json.Marshal(map[string]int64{"value": n})
}
