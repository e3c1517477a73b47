package debate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// transcriptTemplate renders a debate as plain text for whoever has to make
// the final call after an escalation.
const transcriptTemplate = `# Debate: {{.Topic}}

ID: {{.ID}}
Status: {{.Status}}{{if .EndReason}} ({{.EndReason}}){{end}}
Participants: {{join .Participants ", "}}
Cycles completed: {{.CyclesCompleted}}
Rounds: {{len .Rounds}}
{{- if .Winner}}
Winner: {{.Winner.ID}} by {{.Winner.AuthorID}}
{{- end}}

## Proposals
{{range .Proposals}}
### {{.ID}} by {{.AuthorID}} (round {{.Round}}, confidence {{printf "%.2f" .Confidence}}{{if not .Eligible}}, INELIGIBLE{{end}}{{if .Modified}}, modified{{end}})

{{indent .Solution}}
{{- if .Reasoning}}

Reasoning:
{{indent .Reasoning}}
{{- end}}
{{else}}
(none)
{{end}}
## Critiques
{{range .Critiques}}
- [{{.Severity}}] {{.FromAgent}} on {{.ProposalID}}{{if .Addressed}} (addressed){{end}}: {{oneline .Text}}
{{- if .SuggestedFix}}
  Suggested fix: {{oneline .SuggestedFix}}
{{- end}}
{{- else}}
(none)
{{- end}}

## Defenses
{{range .Defenses}}
- {{.AgentID}} answering {{.CritiqueID}}{{if .ProposalModified}} (proposal modified){{end}}: {{oneline .Text}}
{{- else}}
(none)
{{- end}}

## Votes
{{range .Votes}}
- round {{.Round}}: {{.AgentID}} -> {{.ProposalID}} weight {{printf "%.2f" .Weight}}{{if .Justification}} ({{oneline .Justification}}){{end}}
{{- else}}
(none)
{{- end}}
`

var transcriptTmpl = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"join":    strings.Join,
	"indent":  indent,
	"oneline": oneline,
}).Parse(transcriptTemplate))

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RenderTranscript formats d as plain text.
func RenderTranscript(d *Debate) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return buf.String(), nil
}

// Transcript renders the current state of a debate as plain text.
func (c *Coordinator) Transcript(debateID string) (string, error) {
	d, err := c.Get(debateID)
	if err != nil {
		return "", err
	}
	return RenderTranscript(d)
}
