package claims

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
)

func signComponentToken(t *testing.T, name, callAlias string, caps []string) string {
	t.Helper()
	claims := &componentClaimsToken{}
	claims.Subject = "MCOMPONENT"
	claims.Issuer = "AISSUER"
	claims.WasmCloud.Name = name
	claims.WasmCloud.CallAlias = callAlias
	claims.WasmCloud.Capabilities = caps

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func TestParseComponent(t *testing.T) {
	signed := signComponentToken(t, "echo", "echo", []string{"wasmcloud:httpserver"})

	got, err := ParseComponent(signed)
	if err != nil {
		t.Fatalf("ParseComponent: %v", err)
	}
	if got.Subject != "MCOMPONENT" || got.Issuer != "AISSUER" {
		t.Fatalf("unexpected subject/issuer: %+v", got)
	}
	if got.Name != "echo" || got.CallAlias != "echo" {
		t.Fatalf("unexpected name/call alias: %+v", got)
	}
	if len(got.Capabilities) != 1 || got.Capabilities[0] != "wasmcloud:httpserver" {
		t.Fatalf("unexpected capabilities: %+v", got)
	}
}

func TestParseProvider(t *testing.T) {
	claims := &providerClaimsToken{}
	claims.Subject = "VPROVIDER"
	claims.Issuer = "AISSUER"
	claims.WasmCloud.Name = "httpserver"
	claims.WasmCloud.ContractID = "wasmcloud:httpserver"

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	got, err := ParseProvider(signed)
	if err != nil {
		t.Fatalf("ParseProvider: %v", err)
	}
	if got.ContractID != "wasmcloud:httpserver" {
		t.Fatalf("unexpected contract id: %+v", got)
	}
}

func TestParseComponentInvalidToken(t *testing.T) {
	if _, err := ParseComponent("not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}
