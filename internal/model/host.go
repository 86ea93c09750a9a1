/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import (
	"fmt"
	"time"

	"github.com/OneOfOne/xxhash"
)

// ProviderDescriptor is the host's view of one provider running on it,
// carried on Host rather than looked up through the Provider record so the
// heartbeat handler can overwrite it in one write (§4.1 "Host heartbeat").
type ProviderDescriptor struct {
	ProviderID  string            `json:"provider_id"`
	ContractID  string            `json:"contract_id"`
	LinkName    string            `json:"link_name"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Host is the Store's record of one lattice host (§3 "Host").
type Host struct {
	ID           string            `json:"id"`
	FriendlyName string            `json:"friendly_name"`
	Labels       map[string]string `json:"labels,omitempty"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	// Components maps component-id to the instance count running on this host.
	Components map[string]int      `json:"components,omitempty"`
	Providers  []ProviderDescriptor `json:"providers,omitempty"`
	UptimeSecs uint64               `json:"uptime_seconds"`
	Version    string               `json:"version,omitempty"`
	LastSeen   time.Time            `json:"last_seen"`

	digest uint64
}

// NewHost constructs a Host with initialized, empty maps so callers never
// need a nil check before indexing into Components.
func NewHost(id string) *Host {
	return &Host{
		ID:         id,
		Components: make(map[string]int),
	}
}

// Digest returns a stable xxhash of the host id, computed once and cached
// (adapted from the teacher's Snode.Digest).
func (h *Host) Digest() uint64 {
	if h.digest == 0 {
		h.digest = xxhash.ChecksumString64(h.ID)
	}
	return h.digest
}

func (h *Host) String() string {
	if h == nil {
		return "Host<nil>"
	}
	return fmt.Sprintf("Host[%s %q]", h.ID, h.FriendlyName)
}

// Clone returns a deep-enough copy for read-modify-write against the Store:
// the maps and slice are copied, field values within them are not (they are
// themselves value types or replaced wholesale on write).
func (h *Host) Clone() *Host {
	if h == nil {
		return nil
	}
	out := *h
	out.Labels = cloneStringMap(h.Labels)
	out.Annotations = cloneStringMap(h.Annotations)
	out.Components = make(map[string]int, len(h.Components))
	for k, v := range h.Components {
		out.Components[k] = v
	}
	if h.Providers != nil {
		out.Providers = make([]ProviderDescriptor, len(h.Providers))
		copy(out.Providers, h.Providers)
	}
	return &out
}

// ProviderDescriptorIndex returns the index of the descriptor for
// (providerID, linkName), or -1 if absent.
func (h *Host) ProviderDescriptorIndex(providerID, linkName string) int {
	for i, pd := range h.Providers {
		if pd.ProviderID == providerID && pd.LinkName == linkName {
			return i
		}
	}
	return -1
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
