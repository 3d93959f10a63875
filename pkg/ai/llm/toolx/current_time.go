package toolx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
)

// CurrentTime reports the current time, optionally in an IANA time zone.
type CurrentTime struct {
	now func() time.Time
}

func NewCurrentTime() *CurrentTime {
	return &CurrentTime{now: time.Now}
}

type currentTimeArgs struct {
	Timezone string `json:"timezone"`
}

type currentTimeResult struct {
	Timezone string `json:"timezone"`
	Time     string `json:"time"`
	Weekday  string `json:"weekday"`
}

func (c *CurrentTime) Name() string { return "current_time" }

func (c *CurrentTime) GetTool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.Function{
			Name:        c.Name(),
			Description: "Returns the current date and time. Use it whenever the user asks about the time or date.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timezone": map[string]any{
						"type":        "string",
						"description": "IANA time zone such as Europe/Madrid. Defaults to UTC.",
					},
				},
				"additionalProperties": false,
			},
		},
	}
}

func (c *CurrentTime) Call(_ context.Context, inputs string) (any, error) {
	var args currentTimeArgs
	if strings.TrimSpace(inputs) != "" {
		if err := json.Unmarshal([]byte(inputs), &args); err != nil {
			return nil, ErrInvalidArguments().WithCause(err)
		}
	}
	if args.Timezone == "" {
		args.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(args.Timezone)
	if err != nil {
		return nil, ErrInvalidArguments().WithCause(err).WithDetail("timezone", args.Timezone)
	}
	now := c.now().In(loc)
	return currentTimeResult{
		Timezone: args.Timezone,
		Time:     now.Format(time.RFC3339),
		Weekday:  now.Weekday().String(),
	}, nil
}
