package panel

import (
	"encoding/json"
	"fmt"
)

// Command names on the wire.
const (
	CommandShowDiff = "showDiff"
	CommandApplyFix = "applyFix"
)

// Message is a request sent by a view. The set of messages is closed:
// ShowDiff and ApplyFix are the only implementations.
type Message interface {
	// RenderID identifies the rendering the message was produced from.
	RenderID() string
	command() string
}

// ShowDiff asks for the optimized code to be compared with the original.
type ShowDiff struct {
	Render string
	Code   string
}

// ApplyFix asks for the optimized code to replace the analyzed range.
type ApplyFix struct {
	Render string
	Code   string
}

func (m ShowDiff) RenderID() string { return m.Render }
func (m ShowDiff) command() string  { return CommandShowDiff }
func (m ApplyFix) RenderID() string { return m.Render }
func (m ApplyFix) command() string  { return CommandApplyFix }

type wireMessage struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Render  string `json:"render"`
}

// DecodeMessage parses the wire form {"command", "code", "render"}.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding panel message: %w", err)
	}
	if w.Render == "" {
		return nil, fmt.Errorf("panel message %q has no render id", w.Command)
	}
	switch w.Command {
	case CommandShowDiff:
		return ShowDiff{Render: w.Render, Code: w.Code}, nil
	case CommandApplyFix:
		return ApplyFix{Render: w.Render, Code: w.Code}, nil
	default:
		return nil, fmt.Errorf("unknown panel command %q", w.Command)
	}
}

// EncodeMessage renders m in its wire form.
func EncodeMessage(m Message) ([]byte, error) {
	w := wireMessage{Command: m.command(), Render: m.RenderID()}
	switch m := m.(type) {
	case ShowDiff:
		w.Code = m.Code
	case ApplyFix:
		w.Code = m.Code
	}
	return json.Marshal(w)
}
