package service

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"botfleet/internal/models"
)

// Definition is one named, immutable rule set. Rule changes ship as a
// new id (version suffix), never by mutating an existing one.
type Definition struct {
	ID     string             `yaml:"id"`
	Kind   string             `yaml:"kind"` // crossover | meanrevert
	Params map[string]float64 `yaml:"params"`
}

type strategiesFile struct {
	Strategies []Definition `yaml:"strategies"`
}

// Registry maps strategy ids to built engines. Engines are stateless,
// so one instance serves all bots referencing the id.
type Registry struct {
	engines map[string]Engine
}

// LoadRegistry reads the rule sets from a yaml file.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read strategies file")
	}
	var f strategiesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "decode strategies file")
	}
	return NewRegistry(f.Strategies)
}

func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{engines: make(map[string]Engine, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, errors.Wrap(models.ErrInvalidStrategyConfig, "strategy without id")
		}
		if _, dup := r.engines[def.ID]; dup {
			return nil, errors.Wrapf(models.ErrInvalidStrategyConfig, "duplicate strategy id %q", def.ID)
		}
		eng, err := buildEngine(def)
		if err != nil {
			return nil, err
		}
		r.engines[def.ID] = eng
	}
	return r, nil
}

func buildEngine(def Definition) (Engine, error) {
	p := func(key string, dflt float64) float64 {
		if v, ok := def.Params[key]; ok {
			return v
		}
		return dflt
	}

	switch def.Kind {
	case "crossover":
		eng, err := NewCrossover(int(p("fast", 9)), int(p("slow", 21)), p("stop_pct", 0.5), p("rr", 3))
		if err != nil {
			return nil, errors.Wrapf(models.ErrInvalidStrategyConfig, "%s: %v", def.ID, err)
		}
		return eng, nil
	case "meanrevert":
		eng, err := NewMeanRevert(int(p("period", 14)), p("overbought", 70), p("oversold", 30), p("stop_pct", 0.5), p("rr", 3))
		if err != nil {
			return nil, errors.Wrapf(models.ErrInvalidStrategyConfig, "%s: %v", def.ID, err)
		}
		return eng, nil
	default:
		return nil, errors.Wrapf(models.ErrInvalidStrategyConfig, "%s: unknown kind %q", def.ID, def.Kind)
	}
}

// Evaluate runs the named strategy over the bars. A missing id is an
// ErrInvalidStrategyConfig; a too-short series is (zero, false, nil).
func (r *Registry) Evaluate(strategyID string, bars []models.Candle) (models.Signal, bool, error) {
	eng, ok := r.engines[strategyID]
	if !ok {
		return models.Signal{}, false, errors.Wrapf(models.ErrInvalidStrategyConfig, "unknown strategy %q", strategyID)
	}
	sig, fired := eng.Evaluate(bars)
	if !fired {
		return models.Signal{}, false, nil
	}
	sig.StrategyID = strategyID
	return sig, true, nil
}

// Engine returns the built engine for tooling and tests.
func (r *Registry) Engine(strategyID string) (Engine, bool) {
	eng, ok := r.engines[strategyID]
	return eng, ok
}
