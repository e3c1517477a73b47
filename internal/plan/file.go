package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/agent"
	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
)

// Load reads a plan from a YAML or JSON file. Steps without an id are
// numbered "step-N" and steps without a status start pending.
func Load(path string) (*agent.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading plan %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON plan document and validates it.
func Parse(data []byte) (*agent.Plan, error) {
	var p agent.Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.NewPlanError("cannot decode plan", errors.Join(errors.ErrPlanInvalid, err))
	}

	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s == nil {
			return nil, errors.NewPlanError(fmt.Sprintf("step %d is empty", i+1), errors.ErrPlanInvalid)
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("step-%d", i+1)
		}
		if seen[s.ID] {
			return nil, errors.NewPlanError("duplicate step id", errors.ErrPlanInvalid).WithStepID(s.ID)
		}
		seen[s.ID] = true

		switch s.Status {
		case "":
			s.Status = agent.StepPending
		case agent.StepPending, agent.StepInProgress, agent.StepCompleted, agent.StepFailed:
		default:
			return nil, errors.NewPlanError(fmt.Sprintf("unknown step status %q", s.Status), errors.ErrPlanInvalid).
				WithStepID(s.ID)
		}
	}
	if len(p.Steps) == 0 {
		return nil, errors.NewPlanError("plan has no steps", errors.ErrPlanInvalid)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return &p, nil
}

// Save writes p as YAML, creating parent directories as needed.
func Save(path string, p *agent.Plan) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding plan")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing plan %s", path)
	}
	return nil
}

// Summary counts the steps of a plan by status.
type Summary struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Failed     int
}

// Done reports whether no step is left to run.
func (s Summary) Done() bool {
	return s.Pending == 0 && s.InProgress == 0
}

// Summarize counts the steps of p by status.
func Summarize(p *agent.Plan) Summary {
	var s Summary
	if p == nil {
		return s
	}
	for _, step := range p.Steps {
		s.Total++
		switch step.Status {
		case agent.StepInProgress:
			s.InProgress++
		case agent.StepCompleted:
			s.Completed++
		case agent.StepFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}

// Resume prepares a saved plan to run again: steps left in progress by an
// interrupted run are marked failed, then every failed step is reset to
// pending. It returns the ids of the reset steps.
func Resume(p *agent.Plan) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	var reset []string
	for _, step := range p.Steps {
		if step.Status == agent.StepInProgress {
			if err := step.Transition(agent.StepFailed); err != nil {
				return reset, err
			}
		}
		if step.Status != agent.StepFailed {
			continue
		}
		if err := step.Reset(); err != nil {
			return reset, err
		}
		reset = append(reset, step.ID)
	}
	return reset, nil
}
