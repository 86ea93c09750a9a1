package backoff

import "github.com/wasmCloud/lattice-controller/internal/scaler"

var _ scaler.Scaler = (*Wrapper)(nil)
