package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is a decoded registration payload. Raw keeps the "tool" object as
// it arrived so it can be echoed back to the caller.
type Request struct {
	Tool Tool
	Raw  json.RawMessage
}

// ParseRequest decodes a body of the form {"tool": {"name": ..., "commands":
// [...], "examples": ...}}. Every error it returns wraps ErrInvalidTool.
func ParseRequest(body []byte) (Request, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Request{}, fmt.Errorf("%w: malformed body: %v", ErrInvalidTool, err)
	}

	raw, ok := envelope["tool"]
	if !ok || isNull(raw) {
		return Request{}, fmt.Errorf("%w: missing tool", ErrInvalidTool)
	}

	tool, err := ParseTool(raw)
	if err != nil {
		return Request{}, err
	}

	return Request{Tool: tool, Raw: raw}, nil
}

// ParseTool decodes a single tool object, requiring all three fields.
func ParseTool(raw json.RawMessage) (Tool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Tool{}, fmt.Errorf("%w: tool is not an object", ErrInvalidTool)
	}

	var tool Tool
	if err := decodeField(fields, "name", &tool.Name); err != nil {
		return Tool{}, err
	}

	var commands []*string
	if err := decodeField(fields, "commands", &commands); err != nil {
		return Tool{}, err
	}
	tool.Commands = make([]string, len(commands))
	for i, c := range commands {
		if c == nil {
			return Tool{}, fmt.Errorf("%w: commands[%d] is null", ErrInvalidTool, i)
		}
		tool.Commands[i] = *c
	}

	if err := decodeField(fields, "examples", &tool.Examples); err != nil {
		return Tool{}, err
	}

	return tool, nil
}

// Validate checks a tool built in code rather than decoded from JSON.
func Validate(tool Tool) error {
	if tool.Commands == nil {
		return fmt.Errorf("%w: missing commands", ErrInvalidTool)
	}
	return nil
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return fmt.Errorf("%w: missing %s", ErrInvalidTool, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s has the wrong type", ErrInvalidTool, key)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
