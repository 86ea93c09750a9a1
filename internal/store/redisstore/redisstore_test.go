package redisstore

import (
	"testing"

	"github.com/wasmCloud/lattice-controller/internal/store"
)

func TestHashKeyLayout(t *testing.T) {
	got := hashKey("default", store.KindHost)
	want := "lattice:default:host"
	if got != want {
		t.Fatalf("unexpected hash key: got %q want %q", got, want)
	}
}

func TestHashKeyPerLatticeIsolation(t *testing.T) {
	a := hashKey("tenant-a", store.KindComponent)
	b := hashKey("tenant-b", store.KindComponent)
	if a == b {
		t.Fatalf("expected distinct hash keys per lattice, got %q for both", a)
	}
}
