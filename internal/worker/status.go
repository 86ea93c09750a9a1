package worker

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/wasmCloud/lattice-controller/internal/scaler"
)

// ManifestStatus is what the Event Worker publishes to a manifest's status
// subject after each dispatch pass (§4.6).
type ManifestStatus struct {
	Phase   scaler.Phase `json:"phase"`
	Message string       `json:"message,omitempty"`
}

// joinStatus computes the status for a manifest's dispatch pass: if this
// pass emitted any commands, the manifest is compensating; otherwise it is
// the join of every scaler's own status, where any non-ready phase wins
// over "ready" (§4.6, §4.8).
func joinStatus(scalers []scaler.Scaler, emittedCommands bool) ManifestStatus {
	if emittedCommands {
		return ManifestStatus{Phase: scaler.Compensating}
	}
	if len(scalers) == 0 {
		return ManifestStatus{Phase: scaler.Ready}
	}

	joined := ManifestStatus{Phase: scaler.Ready}
	for _, s := range scalers {
		st := s.Status()
		if rank(st.Phase) > rank(joined.Phase) {
			joined = ManifestStatus{Phase: st.Phase, Message: st.Message}
		}
	}
	return joined
}

// rank orders phases so the worst one reported by any scaler in a manifest
// wins the join: failed is worse than compensating is worse than undeployed
// is worse than ready.
func rank(p scaler.Phase) int {
	switch p {
	case scaler.Failed:
		return 3
	case scaler.Compensating:
		return 2
	case scaler.Undeployed:
		return 1
	default:
		return 0
	}
}

func jsonMarshalStatus(s ManifestStatus) ([]byte, error) {
	return jsoniter.Marshal(s)
}
