package debate

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/event"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/logging"
)

// shareEpsilon absorbs float rounding when a share is compared with the
// threshold, so that 2 of 3 equal votes meet a 2/3 threshold.
const shareEpsilon = 1e-9

// Config controls the debate protocol.
type Config struct {
	// RoundTimeout closes a round that is still open. Zero disables timeouts.
	RoundTimeout       time.Duration
	ConsensusThreshold float64
	MaxCycles          int
	AllowModifications bool
}

// DefaultConfig returns five minute rounds, a 2/3 threshold and three cycles.
func DefaultConfig() Config {
	return Config{
		RoundTimeout:       5 * time.Minute,
		ConsensusThreshold: 2.0 / 3.0,
		MaxCycles:          3,
		AllowModifications: true,
	}
}

// Timer is the part of *time.Timer the coordinator needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// CritiqueInput describes a critique submission.
type CritiqueInput struct {
	FromAgent    string
	ProposalID   string
	ToAgent      string // must be the proposal's author
	Text         string
	Severity     Severity
	SuggestedFix string
}

// DefenseInput describes a defense submission. An empty CritiqueID answers
// every outstanding critique of the proposal at once. A non-empty
// ModifiedSolution replaces the proposal text when modifications are allowed.
type DefenseInput struct {
	AgentID          string
	ProposalID       string
	CritiqueID       string
	Text             string
	ModifiedSolution string
}

// session is the coordinator's private state for one debate.
type session struct {
	debate *Debate
	timer  Timer
	seq    uint64 // incremented per round; stale timer callbacks compare it
}

// Coordinator owns every debate and enforces the protocol. It is safe for
// concurrent use.
type Coordinator struct {
	cfg       Config
	bus       *event.Bus
	logger    *logging.Logger
	afterFunc AfterFunc
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	debates map[string]*session
	order   []string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBus sets the bus debate events are published on.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithAfterFunc replaces time.AfterFunc for round timeouts.
func WithAfterFunc(f AfterFunc) Option {
	return func(c *Coordinator) { c.afterFunc = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator. Zero fields of cfg fall back to
// DefaultConfig, except RoundTimeout which must be set explicitly.
func NewCoordinator(cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.ConsensusThreshold <= 0 || cfg.ConsensusThreshold > 1 {
		cfg.ConsensusThreshold = def.ConsensusThreshold
	}
	if cfg.MaxCycles < 1 {
		cfg.MaxCycles = def.MaxCycles
	}

	c := &Coordinator{
		cfg:       cfg,
		afterFunc: realAfterFunc,
		now:       time.Now,
		newID:     uuid.NewString,
		debates:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.WithComponent("debate")
	return c
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.cfg
}

func (c *Coordinator) publish(evs []event.Event) {
	for _, e := range evs {
		c.bus.Publish(e)
	}
}

// StartDebate opens a debate among participants and starts its first
// propose round.
func (c *Coordinator) StartDebate(topic string, participants []string) (*Debate, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.NewDebateError("topic is required", errors.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(participants))
	parts := make([]string, 0, len(participants))
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.NewDebateError("participant id is empty", errors.ErrInvalidInput)
		}
		if seen[p] {
			return nil, errors.NewDebateError("duplicate participant", errors.ErrInvalidInput).WithAgentID(p)
		}
		seen[p] = true
		parts = append(parts, p)
	}
	if len(parts) < 2 {
		return nil, errors.NewDebateError("a debate needs at least two participants", errors.ErrInvalidInput)
	}

	d := &Debate{
		ID:           c.newID(),
		Topic:        topic,
		Participants: parts,
		Status:       StatusActive,
		CreatedAt:    c.now(),
	}
	s := &session{debate: d}

	c.mu.Lock()
	c.debates[d.ID] = s
	c.order = append(c.order, d.ID)
	evs := []event.Event{event.NewDebateStartedEvent(d.ID, topic, append([]string(nil), parts...))}
	evs = append(evs, c.startRound(s, RoundPropose)...)
	snap := d.clone()
	c.mu.Unlock()

	c.logger.WithDebate(d.ID).Info("debate started", "topic", topic, "participants", len(parts))
	c.publish(evs)
	return snap, nil
}

// SubmitProposal records agentID's proposal for the current propose round.
// Each participant may propose once per propose round.
func (c *Coordinator) SubmitProposal(debateID, agentID, solution, reasoning string, confidence float64) (*Proposal, error) {
	if strings.TrimSpace(solution) == "" {
		return nil, errors.NewDebateError("proposal solution is empty", errors.ErrInvalidInput).
			WithDebateID(debateID).WithAgentID(agentID)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, errors.NewDebateError(fmt.Sprintf("confidence %v is outside [0, 1]", confidence), errors.ErrInvalidInput).
			WithDebateID(debateID).WithAgentID(agentID)
	}

	c.mu.Lock()
	s, err := c.open(debateID, RoundPropose, agentID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	d := s.debate
	for _, p := range d.Proposals {
		if p.AuthorID == agentID && p.Round == d.CurrentRound {
			c.mu.Unlock()
			return nil, errors.NewDebateError("agent already proposed in this round", errors.ErrDuplicateProposal).
				WithDebateID(debateID).WithRound(string(RoundPropose)).WithAgentID(agentID)
		}
	}
	p := &Proposal{
		ID:               c.newID(),
		AuthorID:         agentID,
		Solution:         solution,
		Reasoning:        reasoning,
		Confidence:       confidence,
		Round:            d.CurrentRound,
		BlockingResolved: true,
		CreatedAt:        c.now(),
	}
	d.Proposals = append(d.Proposals, p)
	out := *p
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Info("proposal submitted", "proposal_id", p.ID, "agent_id", agentID)
	c.bus.Publish(event.NewProposalSubmittedEvent(debateID, p.ID, agentID, confidence))
	return &out, nil
}

// SubmitCritique records a critique during a critique round. Agents cannot
// critique their own proposals and must address the critique to the author.
// A blocking critique makes the proposal ineligible for votes.
func (c *Coordinator) SubmitCritique(debateID string, in CritiqueInput) (*Critique, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, errors.NewDebateError("critique text is empty", errors.ErrInvalidInput).
			WithDebateID(debateID).WithAgentID(in.FromAgent)
	}
	if !in.Severity.Valid() {
		return nil, errors.NewDebateError(fmt.Sprintf("unknown severity %q", in.Severity), errors.ErrInvalidInput).
			WithDebateID(debateID).WithAgentID(in.FromAgent)
	}

	c.mu.Lock()
	s, err := c.open(debateID, RoundCritique, in.FromAgent)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	d := s.debate
	p := d.Proposal(in.ProposalID)
	if p == nil {
		c.mu.Unlock()
		return nil, errors.NewDebateError(fmt.Sprintf("no proposal %q", in.ProposalID), errors.ErrProposalNotFound).
			WithDebateID(debateID).WithAgentID(in.FromAgent)
	}
	if p.AuthorID == in.FromAgent {
		c.mu.Unlock()
		return nil, errors.NewDebateError("agents cannot critique their own proposal", errors.ErrSelfCritique).
			WithDebateID(debateID).WithRound(string(RoundCritique)).WithAgentID(in.FromAgent)
	}
	if in.ToAgent != p.AuthorID {
		c.mu.Unlock()
		return nil, errors.NewDebateError(
			fmt.Sprintf("critique is addressed to %q but the proposal author is %q", in.ToAgent, p.AuthorID),
			errors.ErrNotAuthor,
		).WithDebateID(debateID).WithRound(string(RoundCritique)).WithAgentID(in.FromAgent)
	}

	cr := &Critique{
		ID:           c.newID(),
		FromAgent:    in.FromAgent,
		ToAgent:      in.ToAgent,
		ProposalID:   p.ID,
		Text:         in.Text,
		Severity:     in.Severity,
		SuggestedFix: in.SuggestedFix,
		Round:        d.CurrentRound,
		CreatedAt:    c.now(),
	}
	d.Critiques = append(d.Critiques, cr)
	if cr.Severity == SeverityBlocking {
		p.BlockingResolved = false
	}
	out := *cr
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Info("critique submitted",
		"critique_id", cr.ID, "proposal_id", p.ID, "severity", string(cr.Severity))
	c.bus.Publish(event.NewCritiqueSubmittedEvent(debateID, cr.ID, p.ID, cr.FromAgent, cr.ToAgent, string(cr.Severity)))
	return &out, nil
}

// DefendProposal records the author's answer to one critique, or to every
// outstanding critique of the proposal when in.CritiqueID is empty. One
// Defense is returned per critique answered. Once no blocking critique is
// outstanding the proposal becomes eligible again.
func (c *Coordinator) DefendProposal(debateID string, in DefenseInput) ([]*Defense, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, errors.NewDebateError("defense text is empty", errors.ErrInvalidInput).
			WithDebateID(debateID).WithAgentID(in.AgentID)
	}

	c.mu.Lock()
	s, err := c.open(debateID, RoundDefend, in.AgentID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	d := s.debate
	p := d.Proposal(in.ProposalID)
	if p == nil {
		c.mu.Unlock()
		return nil, errors.NewDebateError(fmt.Sprintf("no proposal %q", in.ProposalID), errors.ErrProposalNotFound).
			WithDebateID(debateID).WithAgentID(in.AgentID)
	}
	if p.AuthorID != in.AgentID {
		c.mu.Unlock()
		return nil, errors.NewDebateError("only the author can defend a proposal", errors.ErrNotAuthor).
			WithDebateID(debateID).WithRound(string(RoundDefend)).WithAgentID(in.AgentID)
	}
	modified := in.ModifiedSolution != ""
	if modified && !c.cfg.AllowModifications {
		c.mu.Unlock()
		return nil, errors.NewDebateError("proposal text cannot be replaced", errors.ErrModificationNotAllowed).
			WithDebateID(debateID).WithRound(string(RoundDefend)).WithAgentID(in.AgentID)
	}

	var targets []*Critique
	if in.CritiqueID != "" {
		cr := d.Critique(in.CritiqueID)
		if cr == nil || cr.ProposalID != p.ID {
			c.mu.Unlock()
			return nil, errors.NewDebateError(fmt.Sprintf("no critique %q on this proposal", in.CritiqueID), errors.ErrCritiqueNotFound).
				WithDebateID(debateID).WithAgentID(in.AgentID)
		}
		if cr.Addressed {
			c.mu.Unlock()
			return nil, errors.NewDebateError("critique was already addressed", errors.ErrInvalidInput).
				WithDebateID(debateID).WithAgentID(in.AgentID)
		}
		targets = []*Critique{cr}
	} else {
		for _, cr := range d.Critiques {
			if cr.ProposalID == p.ID && !cr.Addressed {
				targets = append(targets, cr)
			}
		}
		if len(targets) == 0 {
			c.mu.Unlock()
			return nil, errors.NewDebateError("proposal has no outstanding critiques", errors.ErrInvalidInput).
				WithDebateID(debateID).WithAgentID(in.AgentID)
		}
	}

	if modified {
		p.Solution = in.ModifiedSolution
		p.Modified = true
	}
	now := c.now()
	out := make([]*Defense, 0, len(targets))
	ids := make([]string, 0, len(targets))
	for _, cr := range targets {
		cr.Addressed = true
		df := &Defense{
			ID:               c.newID(),
			AgentID:          in.AgentID,
			ProposalID:       p.ID,
			CritiqueID:       cr.ID,
			Text:             in.Text,
			ProposalModified: modified,
			Round:            d.CurrentRound,
			CreatedAt:        now,
		}
		d.Defenses = append(d.Defenses, df)
		cp := *df
		out = append(out, &cp)
		ids = append(ids, cr.ID)
	}
	p.BlockingResolved = !hasOutstandingBlocking(d, p.ID)
	eligible := p.BlockingResolved
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Info("proposal defended",
		"proposal_id", p.ID, "critiques", len(ids), "modified", modified, "eligible", eligible)
	c.bus.Publish(event.NewDefenseSubmittedEvent(debateID, p.ID, in.AgentID, ids, modified, eligible))
	return out, nil
}

func hasOutstandingBlocking(d *Debate, proposalID string) bool {
	for _, cr := range d.Critiques {
		if cr.ProposalID == proposalID && cr.Severity == SeverityBlocking && !cr.Addressed {
			return true
		}
	}
	return false
}

// CastVote records agentID's vote during a vote round. Each participant votes
// once per round and only for eligible proposals. The round completes as
// soon as every participant has voted.
func (c *Coordinator) CastVote(debateID, agentID, proposalID string, weight float64, justification string) (*Vote, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return nil, errors.NewDebateError(fmt.Sprintf("vote weight %v must be a non-negative number", weight), errors.ErrInvalidInput).
			WithDebateID(debateID).WithAgentID(agentID)
	}

	c.mu.Lock()
	s, err := c.open(debateID, RoundVote, agentID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	d := s.debate
	p := d.Proposal(proposalID)
	if p == nil {
		c.mu.Unlock()
		return nil, errors.NewDebateError(fmt.Sprintf("no proposal %q", proposalID), errors.ErrProposalNotFound).
			WithDebateID(debateID).WithAgentID(agentID)
	}
	if !p.Eligible() {
		c.mu.Unlock()
		return nil, errors.NewDebateError("proposal has unresolved blocking critiques", errors.ErrProposalIneligible).
			WithDebateID(debateID).WithRound(string(RoundVote)).WithAgentID(agentID)
	}
	voters := c.votersLocked(d)
	if voters[agentID] {
		c.mu.Unlock()
		return nil, errors.NewDebateError("agent already voted in this round", errors.ErrDuplicateVote).
			WithDebateID(debateID).WithRound(string(RoundVote)).WithAgentID(agentID)
	}

	v := &Vote{
		ID:            c.newID(),
		AgentID:       agentID,
		ProposalID:    p.ID,
		Weight:        weight,
		Justification: justification,
		Round:         d.CurrentRound,
		CreatedAt:     c.now(),
	}
	d.Votes = append(d.Votes, v)
	p.VoteCount++
	p.WeightedScore += weight

	evs := []event.Event{event.NewVoteCastEvent(debateID, v.ID, p.ID, agentID, weight)}
	if len(voters)+1 == len(d.Participants) {
		evs = append(evs, c.completeRound(s, false)...)
	}
	out := *v
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Info("vote cast", "proposal_id", p.ID, "agent_id", agentID, "weight", weight)
	c.publish(evs)
	return &out, nil
}

// votersLocked returns the agents that voted in the current round.
func (c *Coordinator) votersLocked(d *Debate) map[string]bool {
	voters := make(map[string]bool)
	for _, v := range d.Votes {
		if v.Round == d.CurrentRound {
			voters[v.AgentID] = true
		}
	}
	return voters
}

// ResolveDebate tallies a completed vote round. Exactly one proposal at or
// above the consensus threshold ends the debate with consensus. Otherwise a
// new cycle starts, unless the cycle limit is reached or no proposal is
// eligible, in which case the debate escalates.
func (c *Coordinator) ResolveDebate(debateID string) (*Resolution, error) {
	c.mu.Lock()
	s, err := c.live(debateID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	cur := s.debate.Current()
	if cur.Type != RoundVote || !cur.Completed {
		c.mu.Unlock()
		return nil, errors.NewDebateError("resolution requires a completed vote round", errors.ErrRoundNotComplete).
			WithDebateID(debateID).WithRound(string(cur.Type))
	}
	res, evs := c.resolve(s)
	c.mu.Unlock()

	c.logResolution(debateID, res)
	c.publish(evs)
	return &res, nil
}

func (c *Coordinator) logResolution(debateID string, res Resolution) {
	logger := c.logger.WithDebate(debateID)
	switch res.Outcome {
	case OutcomeConsensus:
		logger.Info("consensus reached", "proposal_id", res.Winner.ID, "share", res.Shares[res.Winner.ID])
	case OutcomeEscalated:
		logger.Warn("debate escalated", "reason", res.Reason)
	default:
		logger.Info("no consensus, starting new cycle", "reason", res.Reason)
	}
}

// resolve tallies the current vote round. The caller holds c.mu and has
// checked that the round is a completed vote round.
func (c *Coordinator) resolve(s *session) (Resolution, []event.Event) {
	d := s.debate
	res := Resolution{Shares: make(map[string]float64)}
	for _, v := range d.Votes {
		if v.Round == d.CurrentRound {
			res.TotalWeight += v.Weight
		}
	}

	var eligible, winners []*Proposal
	for _, p := range d.Proposals {
		if !p.Eligible() {
			continue
		}
		eligible = append(eligible, p)
		share := 0.0
		if res.TotalWeight > 0 {
			share = p.WeightedScore / res.TotalWeight
		}
		res.Shares[p.ID] = share
		if res.TotalWeight > 0 && share >= c.cfg.ConsensusThreshold-shareEpsilon {
			winners = append(winners, p)
		}
	}
	d.CyclesCompleted++

	switch {
	case len(eligible) == 0:
		res.Outcome = OutcomeEscalated
		res.Reason = "no eligible proposals"
		return res, c.escalate(s, res.Reason)

	case len(winners) == 1:
		w := winners[0]
		d.Status = StatusConsensusReached
		d.Winner = w
		d.EndedAt = c.now()
		d.EndReason = fmt.Sprintf("proposal %s won %.0f%% of the vote", w.ID, res.Shares[w.ID]*100)
		c.stopTimer(s)
		cp := *w
		res.Outcome = OutcomeConsensus
		res.Winner = &cp
		return res, []event.Event{event.NewConsensusReachedEvent(d.ID, w.ID, w.AuthorID, res.Shares[w.ID])}
	}

	if len(winners) == 0 {
		res.Reason = "no proposal reached the consensus threshold"
	} else {
		res.Reason = fmt.Sprintf("%d proposals reached the consensus threshold", len(winners))
	}
	if d.CyclesCompleted >= c.cfg.MaxCycles {
		res.Outcome = OutcomeEscalated
		res.Reason = fmt.Sprintf("no consensus after %d cycles: %s", d.CyclesCompleted, res.Reason)
		return res, c.escalate(s, res.Reason)
	}
	res.Outcome = OutcomeRevote
	return res, c.startRound(s, RoundPropose)
}

// AdvanceToNextRound closes the current round. Propose, critique and defend
// rounds move straight to the next round type. A vote round is only marked
// complete; ResolveDebate decides what follows it.
func (c *Coordinator) AdvanceToNextRound(debateID string) error {
	c.mu.Lock()
	s, err := c.live(debateID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	cur := s.debate.Current()
	var evs []event.Event
	if cur.Type == RoundVote {
		if cur.Completed {
			c.mu.Unlock()
			return errors.NewDebateError("vote round is already complete, resolve the debate", errors.ErrWrongRound).
				WithDebateID(debateID).WithRound(string(cur.Type))
		}
		evs = c.completeRound(s, false)
	} else {
		evs = c.advance(s, false)
	}
	next := s.debate.Current().Type
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Debug("round advanced", "from", string(cur.Type), "to", string(next))
	c.publish(evs)
	return nil
}

// EscalateToArchitect hands the debate to an external decision maker. The
// debate becomes terminal.
func (c *Coordinator) EscalateToArchitect(debateID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "escalated on request"
	}
	c.mu.Lock()
	s, err := c.live(debateID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	evs := c.escalate(s, reason)
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Warn("debate escalated", "reason", reason)
	c.publish(evs)
	return nil
}

// CancelDebate ends an active debate without an outcome.
func (c *Coordinator) CancelDebate(debateID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled"
	}
	c.mu.Lock()
	s, err := c.live(debateID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ev := c.cancel(s, reason)
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Info("debate cancelled", "reason", reason)
	c.bus.Publish(ev)
	return nil
}

func (c *Coordinator) cancel(s *session, reason string) event.Event {
	d := s.debate
	d.Status = StatusCancelled
	d.EndReason = reason
	d.EndedAt = c.now()
	c.stopTimer(s)
	return event.NewDebateCancelledEvent(d.ID, reason)
}

// Close cancels every active debate and stops all round timers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	var evs []event.Event
	for _, id := range c.order {
		s := c.debates[id]
		if !s.debate.Status.IsTerminal() {
			evs = append(evs, c.cancel(s, "coordinator closed"))
		}
	}
	c.mu.Unlock()
	c.publish(evs)
}

// Get returns a copy of the debate.
func (c *Coordinator) Get(debateID string) (*Debate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.lookup(debateID)
	if err != nil {
		return nil, err
	}
	return s.debate.clone(), nil
}

// List returns copies of every debate in creation order.
func (c *Coordinator) List() []*Debate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Debate, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.debates[id].debate.clone())
	}
	return out
}

// lookup finds a debate. The caller holds c.mu.
func (c *Coordinator) lookup(debateID string) (*session, error) {
	s, ok := c.debates[debateID]
	if !ok {
		return nil, errors.NewDebateError("debate not found", errors.ErrDebateNotFound).WithDebateID(debateID)
	}
	return s, nil
}

// live finds a debate that is still active. The caller holds c.mu.
func (c *Coordinator) live(debateID string) (*session, error) {
	s, err := c.lookup(debateID)
	if err != nil {
		return nil, err
	}
	if st := s.debate.Status; st.IsTerminal() {
		return nil, errors.NewDebateError(fmt.Sprintf("debate is %s", st), errors.ErrDebateTerminal).WithDebateID(debateID)
	}
	return s, nil
}

// open checks that a submission by agentID is allowed in the current round.
// The caller holds c.mu.
func (c *Coordinator) open(debateID string, want RoundType, agentID string) (*session, error) {
	s, err := c.live(debateID)
	if err != nil {
		return nil, err
	}
	cur := s.debate.Current()
	if cur.Type != want {
		return nil, errors.NewDebateError(fmt.Sprintf("%s submissions are not accepted during a %s round", want, cur.Type), errors.ErrWrongRound).
			WithDebateID(debateID).WithRound(string(cur.Type)).WithAgentID(agentID)
	}
	if cur.Completed {
		return nil, errors.NewDebateError(fmt.Sprintf("%s round is closed", cur.Type), errors.ErrWrongRound).
			WithDebateID(debateID).WithRound(string(cur.Type)).WithAgentID(agentID)
	}
	if !s.debate.IsParticipant(agentID) {
		return nil, errors.NewDebateError("agent is not a participant", errors.ErrNotParticipant).
			WithDebateID(debateID).WithRound(string(cur.Type)).WithAgentID(agentID)
	}
	return s, nil
}

// startRound appends a new round of type t and arms its timer. Starting a
// vote round clears the tallies of the previous one. The caller holds c.mu.
func (c *Coordinator) startRound(s *session, t RoundType) []event.Event {
	d := s.debate
	idx := len(d.Rounds)
	cycle := d.CyclesCompleted + 1
	d.Rounds = append(d.Rounds, Round{Type: t, Index: idx, Cycle: cycle, StartedAt: c.now()})
	d.CurrentRound = idx
	if t == RoundVote {
		for _, p := range d.Proposals {
			p.VoteCount = 0
			p.WeightedScore = 0
		}
	}

	c.stopTimer(s)
	s.seq++
	if c.cfg.RoundTimeout > 0 {
		id, seq := d.ID, s.seq
		s.timer = c.afterFunc(c.cfg.RoundTimeout, func() { c.onRoundTimeout(id, seq) })
	}
	return []event.Event{event.NewRoundStartedEvent(d.ID, string(t), idx, cycle)}
}

// completeRound marks the current round complete. The caller holds c.mu.
func (c *Coordinator) completeRound(s *session, timedOut bool) []event.Event {
	d := s.debate
	r := &d.Rounds[d.CurrentRound]
	if r.Completed {
		return nil
	}
	r.Completed = true
	r.CompletedAt = c.now()
	r.TimedOut = timedOut
	c.stopTimer(s)
	return []event.Event{event.NewRoundCompletedEvent(d.ID, string(r.Type), r.Index, timedOut)}
}

// advance completes a propose, critique or defend round and starts the next
// one. The caller holds c.mu.
func (c *Coordinator) advance(s *session, timedOut bool) []event.Event {
	cur := s.debate.Current().Type
	evs := c.completeRound(s, timedOut)
	next, err := NextRound(cur)
	if err != nil {
		return evs
	}
	return append(evs, c.startRound(s, next)...)
}

// escalate ends the debate for an external decision. It emits its event at
// most once per debate. The caller holds c.mu.
func (c *Coordinator) escalate(s *session, reason string) []event.Event {
	d := s.debate
	if d.Status.IsTerminal() {
		return nil
	}
	d.Status = StatusEscalated
	d.EndReason = reason
	d.EndedAt = c.now()
	c.stopTimer(s)
	return []event.Event{event.NewDebateEscalatedEvent(d.ID, reason, d.CyclesCompleted)}
}

func (c *Coordinator) stopTimer(s *session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// onRoundTimeout closes a round whose timer fired. Callbacks for rounds that
// have since ended are ignored.
func (c *Coordinator) onRoundTimeout(debateID string, seq uint64) {
	c.mu.Lock()
	s, ok := c.debates[debateID]
	if !ok || s.seq != seq || s.debate.Status.IsTerminal() {
		c.mu.Unlock()
		return
	}
	cur := s.debate.Current()
	if cur.Completed {
		c.mu.Unlock()
		return
	}

	var (
		evs      []event.Event
		res      Resolution
		resolved bool
	)
	if cur.Type == RoundVote {
		evs = c.completeRound(s, true)
		var more []event.Event
		res, more = c.resolve(s)
		evs = append(evs, more...)
		resolved = true
	} else {
		evs = c.advance(s, true)
	}
	c.mu.Unlock()

	c.logger.WithDebate(debateID).Info("round timed out", "round", string(cur.Type), "index", cur.Index)
	if resolved {
		c.logResolution(debateID, res)
	}
	c.publish(evs)
}
