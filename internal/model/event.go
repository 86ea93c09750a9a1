/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import "github.com/wasmCloud/lattice-controller/internal/claims"

// EventKind tags one lattice event variant, used as the dispatch-table key
// in the State Projector and the correspondence table in the Backoff
// Wrapper rather than a Go type switch everywhere (§4.1, §4.4).
type EventKind string

const (
	EventHostStarted             EventKind = "host_started"
	EventHostStopped             EventKind = "host_stopped"
	EventHostHeartbeat           EventKind = "host_heartbeat"
	EventComponentsStarted       EventKind = "components_started"
	EventComponentsStartFailed   EventKind = "components_start_failed"
	EventComponentsStopped       EventKind = "components_stopped"
	EventProviderStarted         EventKind = "provider_started"
	EventProviderStartFailed     EventKind = "provider_start_failed"
	EventProviderStopped         EventKind = "provider_stopped"
	EventProviderHealthCheckPass EventKind = "provider_health_check_passed"
	EventProviderHealthCheckFail EventKind = "provider_health_check_failed"
	EventLinkSet                 EventKind = "linkdef_set"
	EventLinkDel                 EventKind = "linkdef_deleted"
)

// Event is the tagged-union contract every lattice event variant
// implements: a stable Kind for dispatch, the lattice it belongs to, and
// the annotations carried on the event (used for hinted dispatch and
// expected-event matching).
type Event interface {
	Kind() EventKind
	Lattice() string
	EventAnnotations() map[string]string
}

// Meta carries the fields common to every event variant: the owning
// lattice and the annotations the event was observed with.
type Meta struct {
	LatticeID   string            `json:"lattice_id"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func (b Meta) Lattice() string                     { return b.LatticeID }
func (b Meta) EventAnnotations() map[string]string { return b.Annotations }

type HostStarted struct {
	Meta
	HostID       string            `json:"host_id"`
	FriendlyName string            `json:"friendly_name"`
	Labels       map[string]string `json:"labels,omitempty"`
}

func (HostStarted) Kind() EventKind { return EventHostStarted }

type HostStopped struct {
	Meta
	HostID string `json:"host_id"`
}

func (HostStopped) Kind() EventKind { return EventHostStopped }

type HostHeartbeat struct {
	Meta
	HostID       string               `json:"host_id"`
	FriendlyName string               `json:"friendly_name"`
	Labels       map[string]string    `json:"labels,omitempty"`
	Components   map[string]int       `json:"components,omitempty"`
	Providers    []ProviderDescriptor `json:"providers,omitempty"`
	UptimeSecs   uint64               `json:"uptime_seconds"`
	Version      string               `json:"version,omitempty"`
}

func (HostHeartbeat) Kind() EventKind { return EventHostHeartbeat }

// ComponentsStarted reports one or more new instances of a component
// starting on a host, all sharing the same image ref and annotations
// (§4.4 correspondence: annotations, image-ref, count, host-id).
type ComponentsStarted struct {
	Meta
	HostID    string                    `json:"host_id"`
	PublicKey string                    `json:"public_key"`
	ImageRef  string                    `json:"image_ref"`
	Count     int                       `json:"count"`
	Instances []InstanceDescriptor      `json:"instances"`
	Claims    *claims.ComponentClaims   `json:"claims,omitempty"`
}

func (ComponentsStarted) Kind() EventKind { return EventComponentsStarted }

type ComponentsStartFailed struct {
	Meta
	HostID   string `json:"host_id"`
	ImageRef string `json:"image_ref"`
	Error    string `json:"error"`
}

func (ComponentsStartFailed) Kind() EventKind { return EventComponentsStartFailed }

// ComponentsStopped reports one or more instances stopping
// (§4.4: annotations, public-key, count, host-id).
type ComponentsStopped struct {
	Meta
	HostID      string   `json:"host_id"`
	PublicKey   string   `json:"public_key"`
	Count       int      `json:"count"`
	InstanceIDs []string `json:"instance_ids"`
}

func (ComponentsStopped) Kind() EventKind { return EventComponentsStopped }

type ProviderStarted struct {
	Meta
	HostID     string                 `json:"host_id"`
	ProviderID string                 `json:"provider_id"`
	LinkName   string                 `json:"link_name"`
	ContractID string                 `json:"contract_id"`
	ImageRef   string                 `json:"image_ref"`
	Claims     *claims.ProviderClaims `json:"claims,omitempty"`
}

func (ProviderStarted) Kind() EventKind { return EventProviderStarted }

type ProviderStartFailed struct {
	Meta
	HostID     string `json:"host_id"`
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name"`
	Error      string `json:"error"`
}

func (ProviderStartFailed) Kind() EventKind { return EventProviderStartFailed }

type ProviderStopped struct {
	Meta
	HostID     string `json:"host_id"`
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name"`
}

func (ProviderStopped) Kind() EventKind { return EventProviderStopped }

type ProviderHealthCheckPass struct {
	Meta
	HostID     string `json:"host_id"`
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name"`
}

func (ProviderHealthCheckPass) Kind() EventKind { return EventProviderHealthCheckPass }

type ProviderHealthCheckFail struct {
	Meta
	HostID     string `json:"host_id"`
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name"`
}

func (ProviderHealthCheckFail) Kind() EventKind { return EventProviderHealthCheckFail }

// LinkSet reports a link creation/update observed on the lattice
// (§4.4: source, contract, link-name, target, values).
type LinkSet struct {
	Meta
	Source     string            `json:"source"`
	ContractID string            `json:"contract_id"`
	LinkName   string            `json:"link_name"`
	Namespace  string            `json:"namespace"`
	Package    string            `json:"package"`
	Target     string            `json:"target"`
	Values     map[string]string `json:"values,omitempty"`
}

func (LinkSet) Kind() EventKind { return EventLinkSet }

type LinkDel struct {
	Meta
	Source   string `json:"source"`
	LinkName string `json:"link_name"`
}

func (LinkDel) Kind() EventKind { return EventLinkDel }
