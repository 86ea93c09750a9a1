package model

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/wasmCloud/lattice-controller/internal/cmn"
)

// envelope is the wire shape every Event or Command is published as: a
// discriminator plus the variant's own fields, so a consumer can decode the
// discriminator first and unmarshal the rest into the matching concrete
// type (§6 "messages are ... serializable records").
type envelope struct {
	Kind    string               `json:"kind"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// MarshalEvent encodes ev as a kind-tagged envelope.
func MarshalEvent(ev Event) ([]byte, error) {
	payload, err := jsoniter.Marshal(ev)
	if err != nil {
		return nil, cmn.Wrap(err, "marshal event payload")
	}
	return jsoniter.Marshal(envelope{Kind: string(ev.Kind()), Payload: payload})
}

// UnmarshalEvent decodes a kind-tagged envelope into the matching concrete
// Event variant.
func UnmarshalEvent(data []byte) (Event, error) {
	var env envelope
	if err := jsoniter.Unmarshal(data, &env); err != nil {
		return nil, cmn.Wrap(err, "unmarshal event envelope")
	}
	var ev Event
	switch EventKind(env.Kind) {
	case EventHostStarted:
		ev = &HostStarted{}
	case EventHostStopped:
		ev = &HostStopped{}
	case EventHostHeartbeat:
		ev = &HostHeartbeat{}
	case EventComponentsStarted:
		ev = &ComponentsStarted{}
	case EventComponentsStartFailed:
		ev = &ComponentsStartFailed{}
	case EventComponentsStopped:
		ev = &ComponentsStopped{}
	case EventProviderStarted:
		ev = &ProviderStarted{}
	case EventProviderStartFailed:
		ev = &ProviderStartFailed{}
	case EventProviderStopped:
		ev = &ProviderStopped{}
	case EventProviderHealthCheckPass:
		ev = &ProviderHealthCheckPass{}
	case EventProviderHealthCheckFail:
		ev = &ProviderHealthCheckFail{}
	case EventLinkSet:
		ev = &LinkSet{}
	case EventLinkDel:
		ev = &LinkDel{}
	default:
		return nil, cmn.NewNotFoundError("event kind %q", env.Kind)
	}
	if err := jsoniter.Unmarshal(env.Payload, ev); err != nil {
		return nil, cmn.Wrap(err, "unmarshal event payload")
	}
	return derefEvent(ev), nil
}

// derefEvent returns the pointed-to value: every variant's methods have
// value receivers, so dereferencing keeps the interface satisfied by the
// concrete struct rather than a pointer to it.
func derefEvent(ev Event) Event {
	switch v := ev.(type) {
	case *HostStarted:
		return *v
	case *HostStopped:
		return *v
	case *HostHeartbeat:
		return *v
	case *ComponentsStarted:
		return *v
	case *ComponentsStartFailed:
		return *v
	case *ComponentsStopped:
		return *v
	case *ProviderStarted:
		return *v
	case *ProviderStartFailed:
		return *v
	case *ProviderStopped:
		return *v
	case *ProviderHealthCheckPass:
		return *v
	case *ProviderHealthCheckFail:
		return *v
	case *LinkSet:
		return *v
	case *LinkDel:
		return *v
	default:
		return ev
	}
}

// MarshalCommand encodes cmd as a kind-tagged envelope.
func MarshalCommand(cmd Command) ([]byte, error) {
	payload, err := jsoniter.Marshal(cmd)
	if err != nil {
		return nil, cmn.Wrap(err, "marshal command payload")
	}
	return jsoniter.Marshal(envelope{Kind: string(cmd.Kind()), Payload: payload})
}

// UnmarshalCommand decodes a kind-tagged envelope into the matching
// concrete Command variant.
func UnmarshalCommand(data []byte) (Command, error) {
	var env envelope
	if err := jsoniter.Unmarshal(data, &env); err != nil {
		return nil, cmn.Wrap(err, "unmarshal command envelope")
	}
	var cmd Command
	switch CommandKind(env.Kind) {
	case CommandScaleComponent:
		cmd = &ScaleComponent{}
	case CommandStartProvider:
		cmd = &StartProvider{}
	case CommandStopProvider:
		cmd = &StopProvider{}
	case CommandPutLink:
		cmd = &PutLink{}
	case CommandDeleteLink:
		cmd = &DeleteLink{}
	case CommandPutConfig:
		cmd = &PutConfig{}
	case CommandDeleteConfig:
		cmd = &DeleteConfig{}
	default:
		return nil, cmn.NewNotFoundError("command kind %q", env.Kind)
	}
	if err := jsoniter.Unmarshal(env.Payload, cmd); err != nil {
		return nil, cmn.Wrap(err, "unmarshal command payload")
	}
	return derefCommand(cmd), nil
}

func derefCommand(cmd Command) Command {
	switch v := cmd.(type) {
	case *ScaleComponent:
		return *v
	case *StartProvider:
		return *v
	case *StopProvider:
		return *v
	case *PutLink:
		return *v
	case *DeleteLink:
		return *v
	case *PutConfig:
		return *v
	case *DeleteConfig:
		return *v
	default:
		return cmd
	}
}
