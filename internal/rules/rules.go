// Package rules turns a sensor reading into zero or more alert drafts.
//
// Rules are stateless predicates evaluated independently in declaration
// order. Several rules may fire for the same reading.
package rules

import (
	"plotwatch/internal/types"
)

// Rule thresholds.
const (
	IrrigationMoisture = 30.0
	HeatStressTemp     = 38.0
	MinSoilPH          = 5.5
	MaxSoilPH          = 7.5
)

// Draft messages.
const (
	MsgIrrigation     = "Irrigation needed: Soil moisture is below 30%"
	MsgHeatStress     = "Heat stress alert: Temperature exceeds 38°C"
	MsgSoilCorrection = "Soil correction required: pH level is outside optimal range (5.5-7.5)"
)

// Rule is one named predicate and the draft it produces when it matches.
type Rule struct {
	Name  string
	Match func(types.SensorReading) bool
	Draft types.AlertDraft
}

// DefaultRules returns the built-in rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "low_moisture",
			Match: func(r types.SensorReading) bool {
				return r.SoilMoisture != nil && *r.SoilMoisture < IrrigationMoisture
			},
			Draft: types.AlertDraft{Message: MsgIrrigation, Type: types.AlertTypeIrrigation, Priority: types.PriorityHigh},
		},
		{
			Name: "heat_stress",
			Match: func(r types.SensorReading) bool {
				return r.Temperature != nil && *r.Temperature > HeatStressTemp
			},
			Draft: types.AlertDraft{Message: MsgHeatStress, Type: types.AlertTypeHeatStress, Priority: types.PriorityCritical},
		},
		{
			Name: "soil_ph",
			Match: func(r types.SensorReading) bool {
				return r.SoilPH != nil && (*r.SoilPH < MinSoilPH || *r.SoilPH > MaxSoilPH)
			},
			Draft: types.AlertDraft{Message: MsgSoilCorrection, Type: types.AlertTypeSoilCorrection, Priority: types.PriorityMedium},
		},
	}
}

// Evaluator applies an ordered rule list to readings. It holds no state
// beyond the rule list and is safe for concurrent use.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator returns an Evaluator over the given rules. With no rules it
// uses DefaultRules.
func NewEvaluator(rules ...Rule) *Evaluator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Evaluator{rules: rules}
}

// Evaluate returns the drafts of every matching rule in declaration order.
// A reading matching nothing yields an empty, non-nil slice.
func (e *Evaluator) Evaluate(r types.SensorReading) []types.AlertDraft {
	drafts := make([]types.AlertDraft, 0, len(e.rules))
	for _, rule := range e.rules {
		if rule.Match(r) {
			drafts = append(drafts, rule.Draft)
		}
	}
	return drafts
}

// Rules returns the names of the configured rules in order.
func (e *Evaluator) Rules() []string {
	names := make([]string, len(e.rules))
	for i, rule := range e.rules {
		names[i] = rule.Name
	}
	return names
}
