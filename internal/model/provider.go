/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

// ProviderStatus is the lifecycle of one provider instance on one host
// (§3 "a mapping from host-id to provider status {pending, running, failed}").
type ProviderStatus string

const (
	ProviderPending ProviderStatus = "pending"
	ProviderRunning ProviderStatus = "running"
	ProviderFailed  ProviderStatus = "failed"
)

// Provider is the Store's record of one provider, identified by
// (provider-id, link-name) (§3 "Provider").
type Provider struct {
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name"`
	Name       string `json:"name,omitempty"`
	Issuer     string `json:"issuer,omitempty"`
	ContractID string `json:"contract_id,omitempty"`
	ImageRef   string `json:"image_ref,omitempty"`

	Hosts map[string]ProviderStatus `json:"hosts,omitempty"`
}

// ID is the composite identity used as the Store key.
func (p *Provider) ID() string { return p.ProviderID + "/" + p.LinkName }

func NewProvider(providerID, linkName string) *Provider {
	return &Provider{
		ProviderID: providerID,
		LinkName:   linkName,
		Hosts:      make(map[string]ProviderStatus),
	}
}

// Empty reports whether no host runs this provider (§3 invariant 3).
func (p *Provider) Empty() bool { return len(p.Hosts) == 0 }

func (p *Provider) Clone() *Provider {
	if p == nil {
		return nil
	}
	out := *p
	out.Hosts = make(map[string]ProviderStatus, len(p.Hosts))
	for k, v := range p.Hosts {
		out.Hosts[k] = v
	}
	return &out
}
