// Package model holds the entities the reconciliation core reads and
// writes (Host, Component, Provider), the manifest shape scalers are built
// from, and the event/command tagged unions that flow through the workers.
package model

import "strings"

// ManifestAnnotationKey is the well-known annotation carried by events and
// commands that lets the Event Worker hint-dispatch to one manifest's
// scalers instead of broadcasting to all of them.
const ManifestAnnotationKey = "wadm.lattice/manifest"

// ScalerAnnotationKey identifies the scaler that emitted a command, so the
// matching expected event can be attributed back to the scaler that is
// waiting for it.
const ScalerAnnotationKey = "wadm.lattice/scaler-id"

// ScalerID builds the stable `KIND-MANIFEST-REF` identifier scalers are
// keyed by (§3's "Scaler" entity).
func ScalerID(kind, manifest, ref string) string {
	return kind + "-" + manifest + "-" + ref
}

// SplitScalerID reverses ScalerID's composition; ref may itself contain "-"
// so only the first two separators are meaningful.
func SplitScalerID(id string) (kind, manifest, ref string, ok bool) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// MergeAnnotations merges user-supplied annotations with the scaler's
// managed ones, managed values winning on conflict per spec: "the scaler
// merges the user's first and the managed last".
func MergeAnnotations(user, managed map[string]string) map[string]string {
	out := make(map[string]string, len(user)+len(managed))
	for k, v := range user {
		out[k] = v
	}
	for k, v := range managed {
		out[k] = v
	}
	return out
}
