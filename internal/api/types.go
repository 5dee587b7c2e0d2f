// Package api is the agent's local control surface: a small HTTP API the
// CLI (or any node-local tooling) uses to request frequency changes and
// drive the suspend/offline lifecycle hooks.
package api

// FrequencyRequest asks for one core frequency change.
type FrequencyRequest struct {
	// TargetKHz is the requested frequency in kHz.
	TargetKHz uint `json:"targetKHz"`
	// Relation is "at-least" (default) or "at-most".
	Relation string `json:"relation,omitempty"`
}

// FrequencyResponse reports the frequency the core settled on.
type FrequencyResponse struct {
	Core         uint `json:"core"`
	FrequencyKHz uint `json:"frequencyKHz"`
}

// CoreStatus is one core's view in the status listing.
type CoreStatus struct {
	Core         uint `json:"core"`
	FrequencyKHz uint `json:"frequencyKHz"`
	Active       bool `json:"active"`
	Suspended    bool `json:"suspended"`
}

// StatusResponse lists every coordinated core, ordered by identifier.
type StatusResponse struct {
	Cores []CoreStatus `json:"cores"`
}

// ErrorResponse carries the error text for non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}
