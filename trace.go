package opts

import (
	"encoding/json"
)

// Trace captures how the layers of a merged context contributed to one
// option.
type Trace struct {
	Option string       `json:"option"`
	Scope  string       `json:"scope"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one layer contributed to a traced option.
type Provenance struct {
	Scope       string `json:"scope"`
	Source      string `json:"source"`
	Specificity string `json:"specificity"`
	Value       any    `json:"value,omitempty"`
	Found       bool   `json:"found"`
	Effective   bool   `json:"effective"`
	// EffectiveKeys lists the entries of a keyed option that this layer
	// supplies to the merged view.
	EffectiveKeys []string `json:"effective_keys,omitempty"`
}

// EffectiveLayer returns the provenance of the layer that supplied the
// effective value of a unique option.
func (t Trace) EffectiveLayer() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Effective {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
