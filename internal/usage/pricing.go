// Package usage meters provider calls, prices them, and enforces
// per-tenant quotas.
package usage

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nextier/copilot-engine/internal/model"
)

//go:embed pricing.yaml
var pricingYAML []byte

// ModelRate holds per-model pricing. Token rates are USD per million
// tokens; PerRequest is a flat USD charge that overrides token pricing
// when set (Perplexity sonar models bill per search).
type ModelRate struct {
	Provider      model.Provider `yaml:"provider"`
	InputPerMTok  float64        `yaml:"input_per_mtok"`
	OutputPerMTok float64        `yaml:"output_per_mtok"`
	PerRequest    float64        `yaml:"per_request"`
}

// PriceTable is the versioned pricing registry, loaded once from the
// embedded table and immutable afterward.
type PriceTable struct {
	Version string               `yaml:"version"`
	Models  map[string]ModelRate `yaml:"models"`
}

// LoadPricing parses the embedded pricing table.
func LoadPricing() (*PriceTable, error) {
	var t PriceTable
	if err := yaml.Unmarshal(pricingYAML, &t); err != nil {
		return nil, eris.Wrap(err, "usage: parse pricing table")
	}
	if len(t.Models) == 0 {
		return nil, eris.New("usage: pricing table has no models")
	}
	return &t, nil
}

// MustPricing loads the embedded pricing table and panics on error.
// The table ships inside the binary, so a failure here is a build
// defect, not a runtime condition.
func MustPricing() *PriceTable {
	t, err := LoadPricing()
	if err != nil {
		panic(err)
	}
	return t
}

// Cost returns the USD cost of one call. Unknown models cost zero and
// log a warning so billing gaps surface in operations rather than as
// request failures.
func (t *PriceTable) Cost(modelName string, promptTokens, completionTokens int) float64 {
	rate, ok := t.Models[modelName]
	if !ok {
		zap.L().Warn("usage: no pricing for model, recording zero cost",
			zap.String("model", modelName),
		)
		return 0
	}
	if rate.PerRequest > 0 {
		return rate.PerRequest
	}
	return (float64(promptTokens)/1e6)*rate.InputPerMTok +
		(float64(completionTokens)/1e6)*rate.OutputPerMTok
}

// Rate returns the rate for a model and whether it is known.
func (t *PriceTable) Rate(modelName string) (ModelRate, bool) {
	rate, ok := t.Models[modelName]
	return rate, ok
}
