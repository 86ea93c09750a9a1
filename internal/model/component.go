/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

// InstanceDescriptor identifies one running copy of a component on a host
// (§3 "a mapping from host-id to a set of instance descriptors").
type InstanceDescriptor struct {
	InstanceID  string            `json:"instance_id"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Component is the Store's record of one component (a.k.a. actor), keyed by
// its public-key identity (§3 "Component").
type Component struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Issuer       string   `json:"issuer,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	CallAlias    string   `json:"call_alias,omitempty"`
	ImageRef     string   `json:"image_ref,omitempty"`

	// Instances maps host-id to the set of instance descriptors on that
	// host, keyed by instance-id for O(1) removal (§4.1 "Component
	// stopped... identified by instance-id alone").
	Instances map[string]map[string]InstanceDescriptor `json:"instances,omitempty"`
}

func NewComponent(id string) *Component {
	return &Component{ID: id, Instances: make(map[string]map[string]InstanceDescriptor)}
}

// Count returns the total instance count across all hosts.
func (c *Component) Count() int {
	n := 0
	for _, byInstance := range c.Instances {
		n += len(byInstance)
	}
	return n
}

// Empty reports whether the component has no running instances anywhere
// (§3 invariant 2: "a component with an empty instance map is never
// persisted").
func (c *Component) Empty() bool {
	for _, byInstance := range c.Instances {
		if len(byInstance) > 0 {
			return false
		}
	}
	return true
}

// HostCount returns the instance count on the given host.
func (c *Component) HostCount(hostID string) int {
	return len(c.Instances[hostID])
}

// AddInstance records one running instance on a host.
func (c *Component) AddInstance(hostID string, inst InstanceDescriptor) {
	byInstance, ok := c.Instances[hostID]
	if !ok {
		byInstance = make(map[string]InstanceDescriptor)
		c.Instances[hostID] = byInstance
	}
	byInstance[inst.InstanceID] = inst
}

// RemoveInstance removes one instance by id, pruning the host entry when it
// becomes empty. Returns whether anything was removed.
func (c *Component) RemoveInstance(hostID, instanceID string) bool {
	byInstance, ok := c.Instances[hostID]
	if !ok {
		return false
	}
	if _, ok := byInstance[instanceID]; !ok {
		return false
	}
	delete(byInstance, instanceID)
	if len(byInstance) == 0 {
		delete(c.Instances, hostID)
	}
	return true
}

// RemoveHost drops all instances on a host, used when a host stops or is
// reaped.
func (c *Component) RemoveHost(hostID string) {
	delete(c.Instances, hostID)
}

// Clone returns a deep-enough copy for read-modify-write against the Store.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	out := *c
	if c.Capabilities != nil {
		out.Capabilities = append([]string(nil), c.Capabilities...)
	}
	out.Instances = make(map[string]map[string]InstanceDescriptor, len(c.Instances))
	for hostID, byInstance := range c.Instances {
		cloned := make(map[string]InstanceDescriptor, len(byInstance))
		for id, inst := range byInstance {
			cloned[id] = inst
		}
		out.Instances[hostID] = cloned
	}
	return &out
}
