// Package pipeline chains transformers and a final estimator into one
// estimator that can be cross-validated and grid-searched as a unit.
package pipeline

import (
	"encoding/gob"
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/metrics"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&Pipeline{})
}

// ParamSep separates a step name from a parameter name, as in "rfreg__n_estimators".
const ParamSep = "__"

// Step is one named stage of a Pipeline.
type Step struct {
	Name      string
	Estimator model.Component
}

// Pipeline applies each intermediate step's FitTransform/Transform in order
// and hands the result to the final estimator.
type Pipeline struct {
	State *model.StateManager
	Steps []Step
}

// NewPipeline validates the steps: names must be unique, non-empty and free
// of "__"; every step but the last must be a transformer and the last must
// be an estimator.
func NewPipeline(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline needs at least one step", 0)
	}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" || strings.Contains(s.Name, ParamSep) {
			return nil, errors.NewValidationError("steps", "step names must be non-empty and must not contain '__'", s.Name)
		}
		if seen[s.Name] {
			return nil, errors.NewValidationError("steps", "duplicate step name", s.Name)
		}
		seen[s.Name] = true

		if i < len(steps)-1 {
			if _, ok := s.Estimator.(model.Transformer); !ok {
				return nil, errors.NewValidationError("steps", "intermediate step is not a transformer", s.Name)
			}
		} else if _, ok := s.Estimator.(model.Estimator); !ok {
			return nil, errors.NewValidationError("steps", "final step is not an estimator", s.Name)
		}
	}
	return &Pipeline{State: model.NewStateManager(), Steps: steps}, nil
}

// MustNew is NewPipeline that panics on invalid steps.
func MustNew(steps ...Step) *Pipeline {
	p, err := NewPipeline(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pipeline) final() model.Estimator {
	return p.Steps[len(p.Steps)-1].Estimator.(model.Estimator)
}

// Fit fit-transforms X through every intermediate step, then fits the final
// estimator on the result.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	Xt := X
	for _, s := range p.Steps[:len(p.Steps)-1] {
		out, err := s.Estimator.(model.Transformer).FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", s.Name)
		}
		Xt = out
	}
	last := p.Steps[len(p.Steps)-1]
	if err := p.final().Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "pipeline step %q", last.Name)
	}

	r, c := X.Dims()
	p.State.SetDimensions(c, r)
	p.State.SetFitted()
	return nil
}

func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	for _, s := range p.Steps[:len(p.Steps)-1] {
		out, err := s.Estimator.(model.Transformer).Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", s.Name)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X through the intermediate steps and predicts with the
// final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := p.State.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return p.final().Predict(Xt)
}

// Score is the final estimator's score on the transformed X, R² for regressors.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	if err := p.State.RequireFitted("Pipeline", "Score"); err != nil {
		return 0, err
	}
	Xt, err := p.transform(X)
	if err != nil {
		return 0, err
	}
	if scorer, ok := p.final().(model.Scorer); ok {
		return scorer.Score(Xt, y)
	}
	pred, err := p.final().Predict(Xt)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// NamedSteps returns the steps keyed by name.
func (p *Pipeline) NamedSteps() map[string]model.Component {
	out := make(map[string]model.Component, len(p.Steps))
	for _, s := range p.Steps {
		out[s.Name] = s.Estimator
	}
	return out
}

// Step returns the component registered under name.
func (p *Pipeline) Step(name string) (model.Component, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s.Estimator, true
		}
	}
	return nil, false
}

// GetParams returns every step parameter as "<step>__<param>".
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	for _, s := range p.Steps {
		for k, v := range s.Estimator.GetParams() {
			out[s.Name+ParamSep+k] = v
		}
	}
	return out
}

// SetParams routes "<step>__<param>" keys to the named step.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	grouped := make(map[string]map[string]interface{})
	for k, v := range params {
		name, param, ok := strings.Cut(k, ParamSep)
		if !ok || param == "" {
			return errors.NewValidationError(k, "pipeline parameters must be named <step>__<param>", v)
		}
		if _, found := p.Step(name); !found {
			return errors.NewValidationError(k, "no pipeline step named "+name, v)
		}
		if grouped[name] == nil {
			grouped[name] = make(map[string]interface{})
		}
		grouped[name][param] = v
	}

	// ステップ順に適用してエラーを決定的にする
	for _, s := range p.Steps {
		if g, ok := grouped[s.Name]; ok {
			if err := s.Estimator.SetParams(g); err != nil {
				return errors.Wrapf(err, "pipeline step %q", s.Name)
			}
		}
	}
	p.State.Reset()
	return nil
}

// Clone returns an unfitted pipeline whose steps are clones of p's steps.
func (p *Pipeline) Clone() model.Component {
	steps := make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = Step{Name: s.Name, Estimator: s.Estimator.Clone()}
	}
	return &Pipeline{State: model.NewStateManager(), Steps: steps}
}

// String renders the pipeline the way scikit-learn prints it.
func (p *Pipeline) String() string {
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = fmt.Sprintf("('%s', %v)", s.Name, s.Estimator)
	}
	return "Pipeline(steps=[" + strings.Join(parts, ", ") + "])"
}

// ParamNames returns the sorted GetParams keys.
func (p *Pipeline) ParamNames() []string {
	params := p.GetParams()
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
