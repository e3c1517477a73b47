package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    parsedLine
		wantErr bool
	}{
		{
			name: "blank line",
			line: "   ",
		},
		{
			name:    "not json",
			line:    "Loading model...",
			wantErr: true,
		},
		{
			name:    "truncated json",
			line:    `{"type":"assistant","message":{"content":[{"type":"te`,
			wantErr: true,
		},
		{
			name: "assistant string content",
			line: `{"type":"assistant","message":{"role":"assistant","content":"hello"}}`,
			want: parsedLine{Text: "hello"},
		},
		{
			name: "assistant text blocks are concatenated",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":"foo "},{"type":"thinking","text":"hidden"},{"type":"text","text":"bar"}]}}`,
			want: parsedLine{Text: "foo bar"},
		},
		{
			name: "assistant tool use",
			line: `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}}]}}`,
			want: parsedLine{ToolUses: []toolUse{{ID: "toolu_1", Name: "Bash", Input: `{"command":"ls"}`}}},
		},
		{
			name: "user tool result with string content",
			line: `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"file.go"}]}}`,
			want: parsedLine{ToolResults: []toolResult{{ToolUseID: "toolu_1", Output: "file.go"}}},
		},
		{
			name: "user tool result with block content and error",
			line: `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_2","is_error":true,"content":[{"type":"text","text":"exit 1"},{"type":"text","text":"boom"}]}]}}`,
			want: parsedLine{ToolResults: []toolResult{{ToolUseID: "toolu_2", Output: "exit 1\nboom", IsError: true}}},
		},
		{
			name: "user text is not agent output",
			line: `{"type":"user","message":{"content":"do the thing"}}`,
			want: parsedLine{},
		},
		{
			name: "result record",
			line: `{"type":"result","subtype":"success","result":"done","is_error":false}`,
			want: parsedLine{IsResult: true, Result: "done"},
		},
		{
			name: "error result record",
			line: `{"type":"result","subtype":"error_during_execution","result":"quota exceeded","is_error":true}`,
			want: parsedLine{IsResult: true, Result: "quota exceeded", ResultError: true},
		},
		{
			name: "system records are ignored",
			line: `{"type":"system","subtype":"init","session_id":"abc"}`,
			want: parsedLine{},
		},
		{
			name: "assistant without message",
			line: `{"type":"assistant"}`,
			want: parsedLine{},
		},
		{
			name:    "assistant with malformed content",
			line:    `{"type":"assistant","message":{"content":42}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine([]byte(tt.line))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLineWriter(t *testing.T) {
	var lines []string
	drops := 0
	w := newLineWriter(16, func(b []byte) { lines = append(lines, string(b)) }, func() { drops++ })

	_, _ = w.Write([]byte("one\ntw"))
	_, _ = w.Write([]byte("o\n\nthree"))
	assert.Equal(t, []string{"one", "two", ""}, lines)

	w.Flush()
	assert.Equal(t, []string{"one", "two", "", "three"}, lines)

	lines = nil
	_, _ = w.Write([]byte(strings.Repeat("x", 10)))
	_, _ = w.Write([]byte(strings.Repeat("x", 10)))
	_, _ = w.Write([]byte("tail\nnext\n"))
	assert.Equal(t, []string{"next"}, lines, "oversized line is dropped up to its newline")
	assert.Equal(t, 1, drops)

	_, _ = w.Write([]byte(strings.Repeat("y", 20) + "\n"))
	assert.Equal(t, 2, drops)
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{max: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, _ = b.Write([]byte("defgh"))
	assert.Equal(t, 5, n, "writes always report full length")
	assert.Equal(t, "abcde\n[stderr truncated]", b.String())
}
