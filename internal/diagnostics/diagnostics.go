// Package diagnostics defines the closed vocabulary of non-fatal sync
// diagnostics and their JSON emission format.
package diagnostics

import "encoding/json"

// Severity is the closed set of diagnostic severities.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind is the closed vocabulary of diagnostic kinds the lens emits.
type Kind string

const (
	KindMissingFootprint   Kind = "layout.sync.missing_footprint"
	KindExtraFootprint     Kind = "layout.sync.extra_footprint"
	KindUnmanagedFootprint Kind = "layout.sync.unmanaged_footprint"
	KindDomainMismatch     Kind = "layout.sync.domain_mismatch"
	KindNoLeafGroups       Kind = "layout.sync.no_leaf_groups"
	KindInvalidGroupMember Kind = "layout.sync.invalid_group_member"
	KindEmptyGroup         Kind = "layout.sync.empty_group"
	KindUnknownNets        Kind = "layout.sync.unknown_nets"
)

// Diagnostic is a single non-fatal finding surfaced during sync.
type Diagnostic struct {
	Kind      Kind     `json:"kind"`
	Severity  Severity `json:"severity"`
	Body      string   `json:"body"`
	Path      string   `json:"path,omitempty"`
	Reference string   `json:"reference,omitempty"`
}

// Document is the top-level emitted diagnostics artifact.
type Document struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// MarshalJSON renders the diagnostics document, defaulting to an empty
// (not null) list when there are no diagnostics.
func MarshalJSON(diags []Diagnostic) ([]byte, error) {
	if diags == nil {
		diags = []Diagnostic{}
	}
	return json.MarshalIndent(Document{Diagnostics: diags}, "", "  ")
}
