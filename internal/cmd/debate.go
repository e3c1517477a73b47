package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/debate"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/orchestrator"
)

var debateCmd = &cobra.Command{
	Use:   "debate <scenario-file>",
	Short: "Replay a scripted debate",
	Long: `Replay a debate scenario through the debate protocol and print the outcome.

A scenario lists the participants and, per cycle, the proposals, critiques,
defenses and votes each participant submits. Critiques, defenses and votes
refer to proposals by their author. Submissions the protocol rejects are
reported and skipped, which makes scenarios useful for checking how the
rules treat a given sequence of moves.

Example scenario:
  topic: Choose a cache eviction policy
  participants: [alice, bob, carol]
  cycles:
    - proposals:
        - {agent: alice, solution: "LRU", confidence: 0.8}
        - {agent: bob, solution: "LFU", confidence: 0.6}
      critiques:
        - {from: bob, target: alice, severity: blocking, text: "ignores hot keys"}
      defenses:
        - {agent: alice, text: "hot keys are rare here"}
      votes:
        - {agent: alice, for: alice}
        - {agent: bob, for: alice}
        - {agent: carol, for: alice}`,
	Args: cobra.ExactArgs(1),
	RunE: runDebate,
}

var (
	debateJSON    bool // Print the final debate as JSON
	debateVerbose bool // Print protocol events as they happen
)

func init() {
	debateCmd.Flags().BoolVar(&debateJSON, "json", false, "print the final debate state as JSON")
	debateCmd.Flags().BoolVarP(&debateVerbose, "verbose", "v", false, "print protocol events as they happen")
	rootCmd.AddCommand(debateCmd)
}

// Scenario is a scripted debate.
type Scenario struct {
	Topic        string          `yaml:"topic"`
	Participants []string        `yaml:"participants"`
	Cycles       []ScenarioCycle `yaml:"cycles"`
}

// ScenarioCycle holds the moves of one propose/critique/defend/vote cycle.
type ScenarioCycle struct {
	Proposals []ScenarioProposal `yaml:"proposals"`
	Critiques []ScenarioCritique `yaml:"critiques"`
	Defenses  []ScenarioDefense  `yaml:"defenses"`
	Votes     []ScenarioVote     `yaml:"votes"`
}

type ScenarioProposal struct {
	Agent      string  `yaml:"agent"`
	Solution   string  `yaml:"solution"`
	Reasoning  string  `yaml:"reasoning"`
	Confidence float64 `yaml:"confidence"`
}

type ScenarioCritique struct {
	From         string `yaml:"from"`
	Target       string `yaml:"target"` // author of the critiqued proposal
	Severity     string `yaml:"severity"`
	Text         string `yaml:"text"`
	SuggestedFix string `yaml:"suggested_fix"`
}

type ScenarioDefense struct {
	Agent            string `yaml:"agent"`
	Text             string `yaml:"text"`
	ModifiedSolution string `yaml:"modified_solution"`
}

type ScenarioVote struct {
	Agent         string   `yaml:"agent"`
	For           string   `yaml:"for"` // author of the chosen proposal
	Weight        *float64 `yaml:"weight"`
	Justification string   `yaml:"justification"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scenario %s", path)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.NewValidationError("malformed scenario").WithCause(err)
	}
	if len(s.Cycles) == 0 {
		return nil, errors.NewValidationError("scenario has no cycles").WithField("cycles")
	}
	return &s, nil
}

func runDebate(cmd *cobra.Command, args []string) error {
	sc, err := LoadScenario(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := newPrinter(cmd.OutOrStdout())
	if debateVerbose {
		for _, typ := range debateEventTypes {
			sub := a.orch.Bus().Subscribe(typ, func(e event.Event) {
				out.Muted("  • %s", e.EventType())
			})
			defer a.orch.Bus().Unsubscribe(sub)
		}
	}

	d, err := replay(a.orch, sc, out)
	if err != nil {
		return err
	}

	if debateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	transcript, err := a.orch.Transcript(d.ID)
	if err != nil {
		return err
	}
	out.Line("")
	out.Raw(transcript)
	return nil
}

var debateEventTypes = []string{
	event.TypeDebateStarted,
	event.TypeRoundStarted,
	event.TypeRoundCompleted,
	event.TypeProposalSubmitted,
	event.TypeCritiqueSubmitted,
	event.TypeDefenseSubmitted,
	event.TypeVoteCast,
	event.TypeConsensusReached,
	event.TypeDebateEscalated,
	event.TypeDebateCancelled,
}

// replay drives sc through the orchestrator and returns the final debate.
// Protocol violations are reported and skipped; other errors abort.
func replay(orch *orchestrator.Orchestrator, sc *Scenario, out *printer) (*debate.Debate, error) {
	d, err := orch.StartDebate(sc.Topic, sc.Participants)
	if err != nil {
		return nil, err
	}
	out.Title("Debate %s: %s", d.ID, sc.Topic)

	// skip reports a rejected move. Anything that is not a protocol
	// violation is returned to abort the replay.
	skip := func(what string, err error) error {
		if errors.IsProtocolViolation(err) {
			out.Error(what+" rejected", err)
			return nil
		}
		return err
	}

	byAuthor := make(map[string]string) // latest proposal id per author
	for i, cycle := range sc.Cycles {
		out.Heading("Cycle %d", i+1)

		for _, p := range cycle.Proposals {
			prop, err := orch.SubmitProposal(d.ID, p.Agent, p.Solution, p.Reasoning, p.Confidence)
			if err != nil {
				if err := skip("proposal by "+p.Agent, err); err != nil {
					return nil, err
				}
				continue
			}
			byAuthor[p.Agent] = prop.ID
			out.Status(true, "%s proposed %q", p.Agent, oneLine(p.Solution))
		}
		if err := orch.AdvanceToNextRound(d.ID); err != nil {
			return nil, err
		}

		for _, c := range cycle.Critiques {
			_, err := orch.SubmitCritique(d.ID, debate.CritiqueInput{
				FromAgent:    c.From,
				ProposalID:   byAuthor[c.Target],
				ToAgent:      c.Target,
				Text:         c.Text,
				Severity:     debate.Severity(c.Severity),
				SuggestedFix: c.SuggestedFix,
			})
			if err != nil {
				if err := skip("critique by "+c.From, err); err != nil {
					return nil, err
				}
				continue
			}
			out.Status(true, "%s critiqued %s (%s)", c.From, c.Target, c.Severity)
		}
		if err := orch.AdvanceToNextRound(d.ID); err != nil {
			return nil, err
		}

		for _, def := range cycle.Defenses {
			defenses, err := orch.DefendProposal(d.ID, debate.DefenseInput{
				AgentID:          def.Agent,
				ProposalID:       byAuthor[def.Agent],
				Text:             def.Text,
				ModifiedSolution: def.ModifiedSolution,
			})
			if err != nil {
				if err := skip("defense by "+def.Agent, err); err != nil {
					return nil, err
				}
				continue
			}
			out.Status(true, "%s answered %d critique(s)", def.Agent, len(defenses))
		}
		if err := orch.AdvanceToNextRound(d.ID); err != nil {
			return nil, err
		}

		for _, v := range cycle.Votes {
			weight := 1.0
			if v.Weight != nil {
				weight = *v.Weight
			}
			_, err := orch.CastVote(d.ID, v.Agent, byAuthor[v.For], weight, v.Justification)
			if err != nil {
				if err := skip("vote by "+v.Agent, err); err != nil {
					return nil, err
				}
				continue
			}
			out.Status(true, "%s voted for %s (weight %.2f)", v.Agent, v.For, weight)
		}

		// Close the vote round when someone abstained.
		cur, err := orch.Debate(d.ID)
		if err != nil {
			return nil, err
		}
		if !cur.Current().Completed {
			if err := orch.AdvanceToNextRound(d.ID); err != nil {
				return nil, err
			}
		}

		res, err := orch.ResolveDebate(d.ID)
		if err != nil {
			return nil, err
		}
		printResolution(out, res)
		if res.Outcome != debate.OutcomeRevote {
			return orch.Debate(d.ID)
		}
	}

	if err := orch.EscalateToArchitect(d.ID, "scenario ended without consensus"); err != nil {
		return nil, err
	}
	out.Warn("scenario ended without consensus, escalated")
	return orch.Debate(d.ID)
}

func printResolution(out *printer, res *debate.Resolution) {
	switch res.Outcome {
	case debate.OutcomeConsensus:
		out.Status(true, "consensus on %s by %s (share %.2f)",
			res.Winner.ID, res.Winner.AuthorID, res.Shares[res.Winner.ID])
	case debate.OutcomeEscalated:
		out.Status(false, "escalated: %s", res.Reason)
	default:
		out.Warn("no consensus, starting another cycle: %s", res.Reason)
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
