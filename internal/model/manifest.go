/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

// Link is a directed binding from a component to a provider (§3 "Link").
// Links are not Store entities: the lattice persists them, the core treats
// them as events/configuration artifacts.
type Link struct {
	Source    string            `json:"source"`
	LinkName  string            `json:"link_name"`
	Namespace string            `json:"namespace"`
	Package   string            `json:"package"`
	Target    string            `json:"target"`
	Values    map[string]string `json:"values,omitempty"`
}

// Kind distinguishes the two things a manifest's workload entries can
// describe: a component (WASM actor) or a capability provider.
type Kind string

const (
	KindComponent Kind = "component"
	KindProvider  Kind = "provider"
)

// SpreadConstraint names one placement requirement a host's labels must
// satisfy, with a relative weight among eligible hosts, matching the
// "spread constraints" traits §3 attributes to manifest component specs.
type SpreadConstraint struct {
	Name         string            `json:"name"`
	Requirements map[string]string `json:"requirements,omitempty"`
	Weight       int               `json:"weight"`
	ReplicasHint int               `json:"replicas,omitempty"`
}

// LinkSpec is a manifest-declared link trait on a component spec.
type LinkSpec struct {
	Target    string            `json:"target"`
	LinkName  string            `json:"link_name,omitempty"`
	Namespace string            `json:"namespace"`
	Package   string            `json:"package"`
	Values    map[string]string `json:"values,omitempty"`
}

// ConfigSpec is a manifest-declared named configuration blob trait.
type ConfigSpec struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// ComponentSpec is one workload entry in a manifest: a component or
// provider, its placement policy, and the link/config traits attached to
// it. Each ComponentSpec gives rise to one or more scalers (§4.5).
type ComponentSpec struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	ImageRef string `json:"image_ref"`

	// Replicas is the desired instance count for a spread scaler; ignored
	// when Daemon is true.
	Replicas int `json:"replicas,omitempty"`
	// Daemon requests one instance per matching host instead of a fixed count.
	Daemon bool `json:"daemon,omitempty"`

	Spread []SpreadConstraint `json:"spread,omitempty"`
	Links  []LinkSpec         `json:"links,omitempty"`
	Config []ConfigSpec       `json:"config,omitempty"`

	// ProviderID/LinkName identify a provider spec; unused for components.
	ProviderID string `json:"provider_id,omitempty"`
	LinkName   string `json:"link_name,omitempty"`

	Annotations map[string]string `json:"annotations,omitempty"`
}

// Manifest is the versioned declarative spec the Scaler Manager decomposes
// into scalers (§3 "Manifest"). Parsing/validation of the wire format is
// external to the core; this is the shape the core consumes.
type Manifest struct {
	Name       string          `json:"name"`
	Version    string          `json:"version"`
	Components []ComponentSpec `json:"components"`
}
