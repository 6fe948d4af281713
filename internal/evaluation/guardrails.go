package evaluation

import "fmt"

type GuardrailConfig struct {
	MinFieldAccuracy float64
	MinExactMatch    float64
	MaxFallbackRate  float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxFallbackRate <= 0 {
		config.MaxFallbackRate = 0.2
	}
	return &Guardrails{config: config}
}

// Violations lists every threshold the summary misses.
func (g *Guardrails) Violations(s *EvalSummary) []string {
	var out []string
	for _, field := range ScoredFields() {
		if acc := s.FieldAccuracy[field]; acc < g.config.MinFieldAccuracy {
			out = append(out, fmt.Sprintf("%s accuracy %.2f below %.2f", field, acc, g.config.MinFieldAccuracy))
		}
	}
	if s.ExactMatchRate < g.config.MinExactMatch {
		out = append(out, fmt.Sprintf("exact match rate %.2f below %.2f", s.ExactMatchRate, g.config.MinExactMatch))
	}
	if s.FallbackRate > g.config.MaxFallbackRate {
		out = append(out, fmt.Sprintf("fallback rate %.2f above %.2f", s.FallbackRate, g.config.MaxFallbackRate))
	}
	return out
}
