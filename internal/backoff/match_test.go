package backoff

import (
	"testing"

	"github.com/wasmCloud/lattice-controller/internal/model"
)

func annotated(manifest, scalerID string) map[string]string {
	return map[string]string{model.ManifestAnnotationKey: manifest, model.ScalerAnnotationKey: scalerID}
}

func TestExpectationsForScaleComponentStart(t *testing.T) {
	cmd := model.ScaleComponent{
		CommandMeta: model.CommandMeta{Annotations: annotated("my-app", "componentspread-my-app-web")},
		ImageRef:    "registry/web:0.1.0",
		HostID:      "host-1",
		Count:       2,
	}
	exp, ok := expectationsForCommand(cmd)
	if !ok {
		t.Fatalf("expected a tracked expectation for a positive-count scale command")
	}
	if exp.Success != model.EventComponentsStarted || exp.Failure != model.EventComponentsStartFailed {
		t.Fatalf("unexpected kinds: %+v", exp)
	}

	ev := model.ComponentsStarted{
		Meta:     model.Meta{Annotations: annotated("my-app", "componentspread-my-app-web")},
		HostID:   "host-1",
		ImageRef: "registry/web:0.1.0",
		Count:    2,
	}
	if !exp.matches(ev) {
		t.Fatalf("expected identical fingerprint to match")
	}
}

func TestExpectationsForScaleComponentStop(t *testing.T) {
	cmd := model.ScaleComponent{
		CommandMeta: model.CommandMeta{Annotations: annotated("my-app", "componentspread-my-app-web")},
		HostID:      "host-1",
		Count:       0,
	}
	exp, ok := expectationsForCommand(cmd)
	if !ok || exp.Success != model.EventComponentsStopped {
		t.Fatalf("expected a components-stopped expectation, got %+v ok=%v", exp, ok)
	}

	ev := model.ComponentsStopped{
		Meta:   model.Meta{Annotations: annotated("my-app", "componentspread-my-app-web")},
		HostID: "host-1",
	}
	if !exp.matches(ev) {
		t.Fatalf("expected stop event to match")
	}
}

func TestDifferentCountDoesNotMatchButIsAmbiguous(t *testing.T) {
	cmd := model.ScaleComponent{
		CommandMeta: model.CommandMeta{Annotations: annotated("my-app", "componentspread-my-app-web")},
		ImageRef:    "registry/web:0.1.0",
		HostID:      "host-1",
		Count:       2,
	}
	exp, _ := expectationsForCommand(cmd)

	ev := model.ComponentsStarted{
		Meta:     model.Meta{Annotations: annotated("my-app", "componentspread-my-app-web")},
		HostID:   "host-1",
		ImageRef: "registry/web:0.1.0",
		Count:    3,
	}
	if exp.matches(ev) {
		t.Fatalf("expected a different count to not match, per the table's literal field list")
	}
	if !exp.ambiguous(ev) {
		t.Fatalf("expected the same-fingerprint-different-count case to be flagged ambiguous")
	}
}

func TestProviderStartFailedMatchesOnLinkNameAndHostOnly(t *testing.T) {
	cmd := model.StartProvider{
		CommandMeta: model.CommandMeta{Annotations: annotated("my-app", "providerspread-my-app-httpserver")},
		ImageRef:    "registry/httpserver:0.1.0",
		LinkName:    "default",
		HostID:      "host-1",
	}
	exp, ok := expectationsForCommand(cmd)
	if !ok {
		t.Fatalf("expected a tracked expectation for StartProvider")
	}

	// Different annotations and image-ref than the command, but the same
	// link-name/host-id: still a match on the failure side.
	ev := model.ProviderStartFailed{
		Meta:       model.Meta{Annotations: annotated("other-app", "other-scaler")},
		LinkName:   "default",
		HostID:     "host-1",
		ProviderID: "VPROVIDER",
		Error:      "timed out",
	}
	if !exp.matches(ev) {
		t.Fatalf("expected provider-start-failed to match on link-name and host-id alone")
	}
}

func TestLinkSetMatchesOnFullFingerprint(t *testing.T) {
	cmd := model.PutLink{
		Source:     "MCOMP",
		ContractID: "wasmcloud:httpserver",
		LinkName:   "default",
		Target:     "VPROVIDER",
		Values:     map[string]string{"port": "8080"},
	}
	exp, ok := expectationsForCommand(cmd)
	if !ok || exp.Success != model.EventLinkSet {
		t.Fatalf("expected a link-set expectation, got %+v ok=%v", exp, ok)
	}

	ev := model.LinkSet{
		Source:     "MCOMP",
		ContractID: "wasmcloud:httpserver",
		LinkName:   "default",
		Target:     "VPROVIDER",
		Values:     map[string]string{"port": "8080"},
	}
	if !exp.matches(ev) {
		t.Fatalf("expected identical link-set fingerprint to match")
	}

	ev.Values = map[string]string{"port": "9090"}
	if exp.matches(ev) {
		t.Fatalf("expected a different values map to not match")
	}
}

func TestPutConfigHasNoTrackedExpectation(t *testing.T) {
	cmd := model.PutConfig{Name: "default-config", Properties: map[string]string{"key": "value"}}
	if _, ok := expectationsForCommand(cmd); ok {
		t.Fatalf("expected config commands to have no tracked expectation")
	}
}
