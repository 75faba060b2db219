package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// RuleSet is the resolved set of thresholds governing one scenario's
// evaluation for one owner. Fields not meaningful for a scenario are
// left at their zero value. Keys this build does not know about are
// kept verbatim in Extra so newer configs survive a round trip.
type RuleSet struct {
	Enabled                 bool    `yaml:"enabled"`
	MinIdleDays             int     `yaml:"min_idle_days,omitempty"`
	MinAgeDays              int     `yaml:"min_age_days,omitempty"`
	MinSizeGB               int64   `yaml:"min_size_gb,omitempty"`
	CPUThresholdPct         float64 `yaml:"cpu_threshold_pct,omitempty"`
	UtilizationThresholdPct float64 `yaml:"utilization_threshold_pct,omitempty"`
	MinUntaggedImages       int     `yaml:"min_untagged_images,omitempty"`

	Extra map[string]string `yaml:",inline"`
}

// knownKeys maps wire names to a setter so unknown keys can be split
// out during decoding.
var knownKeys = map[string]func(*RuleSet, json.RawMessage) error{
	"enabled":                   func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.Enabled) },
	"min_idle_days":             func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.MinIdleDays) },
	"min_age_days":              func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.MinAgeDays) },
	"min_size_gb":               func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.MinSizeGB) },
	"cpu_threshold_pct":         func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.CPUThresholdPct) },
	"utilization_threshold_pct": func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.UtilizationThresholdPct) },
	"min_untagged_images":       func(r *RuleSet, v json.RawMessage) error { return json.Unmarshal(v, &r.MinUntaggedImages) },
}

// UnmarshalJSON decodes known threshold keys into typed fields and
// preserves everything else opaquely in Extra.
func (r *RuleSet) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode rule set: %w", err)
	}

	for key, value := range raw {
		if set, ok := knownKeys[key]; ok {
			if err := set(r, value); err != nil {
				return fmt.Errorf("decode rule key %q: %w", key, err)
			}
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		// Unknown keys are stored as their raw JSON text
		r.Extra[key] = rawToString(value)
	}
	return nil
}

// MarshalJSON emits typed fields under their wire names plus any
// preserved unknown keys.
func (r RuleSet) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"enabled": r.Enabled,
	}
	if r.MinIdleDays != 0 {
		out["min_idle_days"] = r.MinIdleDays
	}
	if r.MinAgeDays != 0 {
		out["min_age_days"] = r.MinAgeDays
	}
	if r.MinSizeGB != 0 {
		out["min_size_gb"] = r.MinSizeGB
	}
	if r.CPUThresholdPct != 0 {
		out["cpu_threshold_pct"] = r.CPUThresholdPct
	}
	if r.UtilizationThresholdPct != 0 {
		out["utilization_threshold_pct"] = r.UtilizationThresholdPct
	}
	if r.MinUntaggedImages != 0 {
		out["min_untagged_images"] = r.MinUntaggedImages
	}
	for key, value := range r.Extra {
		if _, known := knownKeys[key]; !known {
			out[key] = json.RawMessage(stringToRaw(value))
		}
	}
	return json.Marshal(out)
}

// Values flattens the rule set into strings for finding audit metadata
func (r RuleSet) Values() map[string]string {
	out := map[string]string{
		"enabled": strconv.FormatBool(r.Enabled),
	}
	if r.MinIdleDays != 0 {
		out["min_idle_days"] = strconv.Itoa(r.MinIdleDays)
	}
	if r.MinAgeDays != 0 {
		out["min_age_days"] = strconv.Itoa(r.MinAgeDays)
	}
	if r.MinSizeGB != 0 {
		out["min_size_gb"] = strconv.FormatInt(r.MinSizeGB, 10)
	}
	if r.CPUThresholdPct != 0 {
		out["cpu_threshold_pct"] = strconv.FormatFloat(r.CPUThresholdPct, 'f', -1, 64)
	}
	if r.UtilizationThresholdPct != 0 {
		out["utilization_threshold_pct"] = strconv.FormatFloat(r.UtilizationThresholdPct, 'f', -1, 64)
	}
	if r.MinUntaggedImages != 0 {
		out["min_untagged_images"] = strconv.Itoa(r.MinUntaggedImages)
	}
	for key, value := range r.Extra {
		out[key] = value
	}
	return out
}

// SortedExtraKeys returns preserved unknown keys in stable order
func (r RuleSet) SortedExtraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rawToString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

func stringToRaw(s string) []byte {
	if json.Valid([]byte(s)) {
		return []byte(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}
