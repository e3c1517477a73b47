package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record types emitted by the agent CLI in stream-json mode.
const (
	recordAssistant = "assistant"
	recordUser      = "user"
	recordResult    = "result"
)

// streamRecord is one line of the agent's stdout.
type streamRecord struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

// streamMessage is the nested message of assistant and user records.
// Content is either a plain string or an array of contentBlock.
type streamMessage struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type toolUse struct {
	ID    string
	Name  string
	Input string
}

type toolResult struct {
	ToolUseID string
	Output    string
	IsError   bool
}

// parsedLine is everything of interest found on one stdout line.
type parsedLine struct {
	Text        string
	ToolUses    []toolUse
	ToolResults []toolResult

	IsResult    bool
	Result      string
	ResultError bool
}

// parseLine decodes one line of stream output. Blank lines yield an empty
// parsedLine; anything that is not a JSON object yields an error.
func parseLine(line []byte) (parsedLine, error) {
	var out parsedLine
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return out, nil
	}

	var rec streamRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return out, fmt.Errorf("malformed record: %w", err)
	}

	switch rec.Type {
	case recordAssistant:
		text, blocks, err := decodeMessage(rec.Message)
		if err != nil {
			return out, err
		}
		out.Text = text
		for _, b := range blocks {
			if b.Type == "tool_use" {
				out.ToolUses = append(out.ToolUses, toolUse{ID: b.ID, Name: b.Name, Input: string(b.Input)})
			}
		}
	case recordUser:
		_, blocks, err := decodeMessage(rec.Message)
		if err != nil {
			return out, err
		}
		for _, b := range blocks {
			if b.Type == "tool_result" {
				out.ToolResults = append(out.ToolResults, toolResult{
					ToolUseID: b.ToolUseID,
					Output:    flattenContent(b.Content),
					IsError:   b.IsError,
				})
			}
		}
	case recordResult:
		out.IsResult = true
		out.Result = rec.Result
		out.ResultError = rec.IsError
	}
	return out, nil
}

// decodeMessage returns the concatenated text of a message plus its typed
// blocks. A string content is treated as a single text block.
func decodeMessage(raw json.RawMessage) (string, []contentBlock, error) {
	if len(raw) == 0 {
		return "", nil, nil
	}
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", nil, fmt.Errorf("malformed message: %w", err)
	}
	if len(msg.Content) == 0 || string(msg.Content) == "null" {
		return "", nil, nil
	}

	var s string
	if err := json.Unmarshal(msg.Content, &s); err == nil {
		return s, nil, nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return "", nil, fmt.Errorf("malformed content: %w", err)
	}
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), blocks, nil
}

// flattenContent renders tool_result content, which may be a string or an
// array of text blocks.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}
