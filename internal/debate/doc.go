// Package debate runs a structured consensus protocol among agents.
//
// A debate moves through rounds that repeat in a fixed cycle:
//
//	propose → critique → defend → vote → propose → ...
//
// Every mutating operation is only accepted in its own round type. Each round
// has a timeout; a round that is still open when its timeout fires is closed
// with whatever was submitted and the debate moves on. A timed-out vote round
// is resolved immediately.
//
// # Eligibility
//
// A proposal starts eligible. A blocking critique makes it ineligible until
// its author defends against every outstanding blocking critique. Votes for
// ineligible proposals are rejected.
//
// # Resolution
//
// Once a vote round is complete, each eligible proposal's share of the total
// cast weight is compared with the consensus threshold. Exactly one proposal
// at or above the threshold wins. No winner, or more than one, starts a new
// cycle. When the cycle limit is reached, or no proposal is eligible, the
// debate escalates to an external decision maker. Escalation, consensus and
// cancellation are terminal.
//
// # Usage
//
//	c := debate.NewCoordinator(debate.DefaultConfig(), debate.WithBus(bus))
//	d, _ := c.StartDebate("gRPC or REST?", []string{"a", "b", "c"})
//	p, _ := c.SubmitProposal(d.ID, "a", "Use gRPC internally", "type safety", 0.8)
//	_ = c.AdvanceToNextRound(d.ID) // critique
//	_ = c.AdvanceToNextRound(d.ID) // defend
//	_ = c.AdvanceToNextRound(d.ID) // vote
//	for _, agent := range d.Participants {
//		_, _ = c.CastVote(d.ID, agent, p.ID, 1, "")
//	}
//	res, _ := c.ResolveDebate(d.ID)
//
// # Thread Safety
//
// Coordinator is safe for concurrent use. Events are published after the
// coordinator's lock is released, so handlers may call back into it.
package debate
