package debate

import (
	"time"
)

// Status is the lifecycle state of a debate.
type Status string

const (
	StatusActive           Status = "active"
	StatusConsensusReached Status = "consensus_reached"
	StatusEscalated        Status = "escalated"
	StatusCancelled        Status = "cancelled"
)

// IsTerminal reports whether the debate accepts no further operations.
func (s Status) IsTerminal() bool {
	return s != StatusActive
}

// RoundType identifies the phase of a round.
type RoundType string

const (
	RoundPropose  RoundType = "propose"
	RoundCritique RoundType = "critique"
	RoundDefend   RoundType = "defend"
	RoundVote     RoundType = "vote"
)

// Severity grades a critique. Only blocking critiques affect eligibility.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityBlocking Severity = "blocking"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityMajor, SeverityBlocking:
		return true
	}
	return false
}

// Round is one phase of a debate.
type Round struct {
	Type        RoundType `json:"type"`
	Index       int       `json:"index"` // position in Debate.Rounds
	Cycle       int       `json:"cycle"` // 1-indexed
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Completed   bool      `json:"completed"`
	TimedOut    bool      `json:"timed_out"`
}

// Proposal is a candidate solution submitted during a propose round.
// Proposals stay in the debate across cycles.
type Proposal struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id"`
	Solution         string    `json:"solution"`
	Reasoning        string    `json:"reasoning"`
	Confidence       float64   `json:"confidence"`
	Round            int       `json:"round"`
	VoteCount        int       `json:"vote_count"`     // current vote round only
	WeightedScore    float64   `json:"weighted_score"` // current vote round only
	BlockingResolved bool      `json:"blocking_resolved"`
	Modified         bool      `json:"modified"`
	CreatedAt        time.Time `json:"created_at"`
}

// Eligible reports whether the proposal can receive votes.
func (p *Proposal) Eligible() bool {
	return p.BlockingResolved
}

// Critique is an objection to a proposal, addressed to its author.
type Critique struct {
	ID           string    `json:"id"`
	FromAgent    string    `json:"from_agent"`
	ToAgent      string    `json:"to_agent"`
	ProposalID   string    `json:"proposal_id"`
	Text         string    `json:"text"`
	Severity     Severity  `json:"severity"`
	SuggestedFix string    `json:"suggested_fix,omitempty"`
	Addressed    bool      `json:"addressed"`
	Round        int       `json:"round"`
	CreatedAt    time.Time `json:"created_at"`
}

// Defense is an author's answer to one critique.
type Defense struct {
	ID               string    `json:"id"`
	AgentID          string    `json:"agent_id"`
	ProposalID       string    `json:"proposal_id"`
	CritiqueID       string    `json:"critique_id"`
	Text             string    `json:"text"`
	ProposalModified bool      `json:"proposal_modified"`
	Round            int       `json:"round"`
	CreatedAt        time.Time `json:"created_at"`
}

// Vote is one agent's weighted support for a proposal in a vote round.
type Vote struct {
	ID            string    `json:"id"`
	AgentID       string    `json:"agent_id"`
	ProposalID    string    `json:"proposal_id"`
	Weight        float64   `json:"weight"`
	Justification string    `json:"justification,omitempty"`
	Round         int       `json:"round"`
	CreatedAt     time.Time `json:"created_at"`
}

// Debate is the full record of one debate. Values returned by the
// Coordinator are copies and may be read freely.
type Debate struct {
	ID              string      `json:"id"`
	Topic           string      `json:"topic"`
	Participants    []string    `json:"participants"`
	Status          Status      `json:"status"`
	Rounds          []Round     `json:"rounds"`
	CurrentRound    int         `json:"current_round"`
	CyclesCompleted int         `json:"cycles_completed"`
	Proposals       []*Proposal `json:"proposals"`
	Critiques       []*Critique `json:"critiques"`
	Defenses        []*Defense  `json:"defenses"`
	Votes           []*Vote     `json:"votes"`
	Winner          *Proposal   `json:"winner,omitempty"`
	EndReason       string      `json:"end_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	EndedAt         time.Time   `json:"ended_at,omitempty"`
}

// Current returns the round in progress.
func (d *Debate) Current() Round {
	return d.Rounds[d.CurrentRound]
}

// Proposal returns the proposal with the given id, or nil.
func (d *Debate) Proposal(id string) *Proposal {
	for _, p := range d.Proposals {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Critique returns the critique with the given id, or nil.
func (d *Debate) Critique(id string) *Critique {
	for _, c := range d.Critiques {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// IsParticipant reports whether agentID takes part in the debate.
func (d *Debate) IsParticipant(agentID string) bool {
	for _, p := range d.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}

// clone returns a deep copy of d.
func (d *Debate) clone() *Debate {
	c := *d
	c.Participants = append([]string(nil), d.Participants...)
	c.Rounds = append([]Round(nil), d.Rounds...)

	c.Proposals = make([]*Proposal, len(d.Proposals))
	for i, p := range d.Proposals {
		cp := *p
		c.Proposals[i] = &cp
		if d.Winner == p {
			c.Winner = &cp
		}
	}
	c.Critiques = make([]*Critique, len(d.Critiques))
	for i, cr := range d.Critiques {
		cc := *cr
		c.Critiques[i] = &cc
	}
	c.Defenses = make([]*Defense, len(d.Defenses))
	for i, df := range d.Defenses {
		cd := *df
		c.Defenses[i] = &cd
	}
	c.Votes = make([]*Vote, len(d.Votes))
	for i, v := range d.Votes {
		cv := *v
		c.Votes[i] = &cv
	}
	return &c
}

// Outcome is the result of resolving a vote round.
type Outcome string

const (
	OutcomeConsensus Outcome = "consensus"
	OutcomeRevote    Outcome = "revote"
	OutcomeEscalated Outcome = "escalated"
)

// Resolution reports how a vote round was resolved.
type Resolution struct {
	Outcome     Outcome
	Winner      *Proposal          // set for OutcomeConsensus
	Shares      map[string]float64 // weighted share per eligible proposal id
	TotalWeight float64
	Reason      string // why there was no consensus
}
