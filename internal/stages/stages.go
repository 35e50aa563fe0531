// Package stages holds the stage copilot registry: for each lifecycle
// stage, which worker persona owns it, what the copilot focuses on, and
// the prompt fragment injected into provider calls for leads in that
// stage. The registry data ships embedded so lookups never touch disk.
package stages

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nextier/copilot-engine/internal/model"
)

//go:embed stages.yaml
var rawStages []byte

// Priority is the operational urgency of a stage, used to surface which
// stages need human attention first.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Copilot describes the engine's behavior for one lifecycle stage.
type Copilot struct {
	Stage            model.Stage    `yaml:"stage" json:"stage"`
	Name             string         `yaml:"name" json:"name"`
	PrimaryWorker    model.Worker   `yaml:"primary_worker" json:"primary_worker"`
	SupportWorkers   []model.Worker `yaml:"support_workers" json:"support_workers"`
	Priority         Priority       `yaml:"priority" json:"priority"`
	Focus            string         `yaml:"focus" json:"focus"`
	SuggestedActions []string       `yaml:"suggested_actions" json:"suggested_actions"`
	AutomationRules  []string       `yaml:"automation_rules" json:"automation_rules"`
	PromptFragment   string         `yaml:"prompt_fragment" json:"prompt_fragment"`
}

// Registry maps lifecycle stages to their copilot definitions.
type Registry struct {
	Version  string
	copilots map[model.Stage]Copilot
}

type registryFile struct {
	Version  string    `yaml:"version"`
	Copilots []Copilot `yaml:"copilots"`
}

// Load parses the embedded registry and verifies it covers every
// lifecycle stage exactly once.
func Load() (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(rawStages, &f); err != nil {
		return nil, eris.Wrap(err, "stages: parse registry")
	}
	if f.Version == "" {
		return nil, eris.New("stages: registry missing version")
	}

	r := &Registry{
		Version:  f.Version,
		copilots: make(map[model.Stage]Copilot, len(f.Copilots)),
	}
	for _, c := range f.Copilots {
		if _, dup := r.copilots[c.Stage]; dup {
			return nil, eris.Errorf("stages: duplicate entry for stage %q", c.Stage)
		}
		if c.PrimaryWorker == "" {
			return nil, eris.Errorf("stages: stage %q has no primary worker", c.Stage)
		}
		r.copilots[c.Stage] = c
	}
	for _, s := range model.Stages {
		if _, ok := r.copilots[s]; !ok {
			return nil, eris.Errorf("stages: registry missing stage %q", s)
		}
	}
	return r, nil
}

// MustLoad is Load for package setup paths where the embedded data is
// known good. It panics on error.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// ForStage returns the copilot for a stage. Unknown stages fall back to
// the data_prep copilot so callers always get a usable definition.
func (r *Registry) ForStage(stage model.Stage) Copilot {
	if c, ok := r.copilots[stage]; ok {
		return c
	}
	return r.copilots[model.StageDataPrep]
}

// PrimaryWorker returns the worker persona that owns a stage.
func (r *Registry) PrimaryWorker(stage model.Stage) model.Worker {
	return r.ForStage(stage).PrimaryWorker
}

// PromptFragment returns the stage-specific text appended to the system
// prompt for provider calls on leads in this stage.
func (r *Registry) PromptFragment(stage model.Stage) string {
	return r.ForStage(stage).PromptFragment
}

// SuggestedActions returns the operator-facing action list for a stage.
func (r *Registry) SuggestedActions(stage model.Stage) []string {
	return r.ForStage(stage).SuggestedActions
}

// IsWorkerStage reports whether a worker owns or supports a stage.
func (r *Registry) IsWorkerStage(stage model.Stage, worker model.Worker) bool {
	c := r.ForStage(stage)
	if c.PrimaryWorker == worker {
		return true
	}
	for _, w := range c.SupportWorkers {
		if w == worker {
			return true
		}
	}
	return false
}

// WorkerStages returns every stage a worker owns or supports, in
// lifecycle order.
func (r *Registry) WorkerStages(worker model.Worker) []model.Stage {
	var out []model.Stage
	for _, s := range model.Stages {
		if r.IsWorkerStage(s, worker) {
			out = append(out, s)
		}
	}
	return out
}

// UrgentStages returns the stages marked urgent, in lifecycle order.
func (r *Registry) UrgentStages() []model.Stage {
	var out []model.Stage
	for _, s := range model.Stages {
		if r.copilots[s].Priority == PriorityUrgent {
			out = append(out, s)
		}
	}
	return out
}

// All returns every copilot definition in lifecycle order.
func (r *Registry) All() []Copilot {
	out := make([]Copilot, 0, len(r.copilots))
	for _, s := range model.Stages {
		out = append(out, r.copilots[s])
	}
	return out
}
