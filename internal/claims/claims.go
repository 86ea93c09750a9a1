// Package claims parses the JWT claims embedded in component and provider
// identity: name, issuer, capability contract ids, and call alias for
// components; contract id and capability name for providers.
package claims

import (
	"github.com/golang-jwt/jwt/v4"

	"github.com/wasmCloud/lattice-controller/internal/cmn"
)

// ComponentClaims is the subset of a component's signed JWT this core
// persists and compares against events; it never re-verifies the
// signature chain (that is the lattice's job at "start" time), only parses
// the payload the lattice control plane already accepted.
type ComponentClaims struct {
	Subject      string   `json:"sub"`
	Issuer       string   `json:"iss"`
	Name         string   `json:"name"`
	CallAlias    string   `json:"call_alias,omitempty"`
	Capabilities []string `json:"caps,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// ProviderClaims is the analogous subset for a capability provider.
type ProviderClaims struct {
	Subject    string `json:"sub"`
	Issuer     string `json:"iss"`
	Name       string `json:"name"`
	ContractID string `json:"contract_id"`
}

type componentClaimsToken struct {
	jwt.RegisteredClaims
	WasmCloud struct {
		Name         string   `json:"name"`
		CallAlias    string   `json:"call_alias,omitempty"`
		Capabilities []string `json:"caps,omitempty"`
		Tags         []string `json:"tags,omitempty"`
	} `json:"wascap,omitempty"`
}

type providerClaimsToken struct {
	jwt.RegisteredClaims
	WasmCloud struct {
		Name       string `json:"name"`
		ContractID string `json:"contract_id"`
	} `json:"wascap,omitempty"`
}

// ParseComponent extracts ComponentClaims from a signed JWT without
// verifying the signature: the lattice has already done that before this
// event or manifest entry reached the core.
func ParseComponent(token string) (*ComponentClaims, error) {
	claims := &componentClaimsToken{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, cmn.Wrap(err, "parsing component claims")
	}
	return &ComponentClaims{
		Subject:      claims.Subject,
		Issuer:       claims.Issuer,
		Name:         claims.WasmCloud.Name,
		CallAlias:    claims.WasmCloud.CallAlias,
		Capabilities: claims.WasmCloud.Capabilities,
		Tags:         claims.WasmCloud.Tags,
	}, nil
}

// ParseProvider extracts ProviderClaims from a signed JWT, same
// no-signature-verification caveat as ParseComponent.
func ParseProvider(token string) (*ProviderClaims, error) {
	claims := &providerClaimsToken{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, cmn.Wrap(err, "parsing provider claims")
	}
	return &ProviderClaims{
		Subject:    claims.Subject,
		Issuer:     claims.Issuer,
		Name:       claims.WasmCloud.Name,
		ContractID: claims.WasmCloud.ContractID,
	}, nil
}
