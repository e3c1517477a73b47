package orchestrator

import (
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/debate"
)

// StartDebate opens a debate between participants on topic.
func (o *Orchestrator) StartDebate(topic string, participants []string) (*debate.Debate, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	return o.debates.StartDebate(topic, participants)
}

// SubmitProposal records agentID's proposal in the current propose round.
func (o *Orchestrator) SubmitProposal(debateID, agentID, solution, reasoning string, confidence float64) (*debate.Proposal, error) {
	return o.debates.SubmitProposal(debateID, agentID, solution, reasoning, confidence)
}

// SubmitCritique records a critique in the current critique round.
func (o *Orchestrator) SubmitCritique(debateID string, in debate.CritiqueInput) (*debate.Critique, error) {
	return o.debates.SubmitCritique(debateID, in)
}

// DefendProposal records an author's answer to critiques in the defend round.
func (o *Orchestrator) DefendProposal(debateID string, in debate.DefenseInput) ([]*debate.Defense, error) {
	return o.debates.DefendProposal(debateID, in)
}

// CastVote records a weighted vote in the current vote round.
func (o *Orchestrator) CastVote(debateID, agentID, proposalID string, weight float64, justification string) (*debate.Vote, error) {
	return o.debates.CastVote(debateID, agentID, proposalID, weight, justification)
}

// ResolveDebate tallies the completed vote round.
func (o *Orchestrator) ResolveDebate(debateID string) (*debate.Resolution, error) {
	return o.debates.ResolveDebate(debateID)
}

// AdvanceToNextRound closes the current round without waiting for its timeout.
func (o *Orchestrator) AdvanceToNextRound(debateID string) error {
	return o.debates.AdvanceToNextRound(debateID)
}

// EscalateToArchitect hands the debate to an external decision maker.
func (o *Orchestrator) EscalateToArchitect(debateID, reason string) error {
	return o.debates.EscalateToArchitect(debateID, reason)
}

// CancelDebate ends the debate without an outcome.
func (o *Orchestrator) CancelDebate(debateID, reason string) error {
	return o.debates.CancelDebate(debateID, reason)
}

// Debate returns a copy of the debate with the given id.
func (o *Orchestrator) Debate(debateID string) (*debate.Debate, error) {
	return o.debates.Get(debateID)
}

// Debates returns copies of every debate in creation order.
func (o *Orchestrator) Debates() []*debate.Debate {
	return o.debates.List()
}

// Transcript renders a debate as plain text.
func (o *Orchestrator) Transcript(debateID string) (string, error) {
	return o.debates.Transcript(debateID)
}
