// Package topology models the plugin's view of the orchestration topology:
// nodes, their instances, and the two context shapes a lifecycle operation
// can run under (a single node instance, or a relationship between a source
// and a target instance). It also owns the typed schema of the runtime
// properties the plugin persists per instance.
package topology

import (
	"slices"

	"rigger/internal/api"
	"rigger/internal/source"

	"gopkg.in/yaml.v3"
)

// ComputeNodeType marks a node type hierarchy as representing a
// provisionable machine. Nodes carrying it are the default fallback for
// inventory group and host naming.
const ComputeNodeType = "rigger.nodes.Compute"

// Reserved runtime property keys.
const (
	// WorkspaceProperty holds the instance's temp directory path.
	WorkspaceProperty = "workspace"
	// SourcesProperty holds the accumulated inventory document.
	SourcesProperty = "sources"
	// ResultProperty holds the last playbook run result.
	ResultProperty = "result"
	// IPProperty is the runtime IP assigned to a provisioned machine.
	IPProperty = "ip"
)

// Node is the declared (blueprint-time) side of a topology node.
type Node struct {
	Name          string
	Type          string
	TypeHierarchy []string
	Properties    map[string]interface{}
}

// IsCompute reports whether the node's type hierarchy marks it as a
// provisionable machine.
func (n *Node) IsCompute() bool {
	return slices.Contains(n.TypeHierarchy, ComputeNodeType)
}

// Property returns a declared node property.
func (n *Node) Property(key string) (interface{}, bool) {
	value, ok := n.Properties[key]
	return value, ok
}

// AgentConfig returns the node's agent_config sub-map, or an empty map when
// absent or malformed.
func (n *Node) AgentConfig() map[string]interface{} {
	raw, ok := n.Properties["agent_config"]
	if !ok {
		return map[string]interface{}{}
	}
	config, ok := raw.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return config
}

// Instance is one runtime instance of a node, wrapping the engine-owned
// property store with the plugin's fixed schema. Accessors hit the store on
// every call; nothing is cached across calls because the plugin is not the
// store's only writer.
type Instance struct {
	ID    string
	store api.PropertyStore
}

// NewInstance wraps an engine property store for the given instance id.
func NewInstance(id string, store api.PropertyStore) *Instance {
	return &Instance{ID: id, store: store}
}

// RuntimeProperty returns a raw runtime property value.
func (i *Instance) RuntimeProperty(key string) (interface{}, bool) {
	return i.store.Get(key)
}

// SetRuntimeProperty stores a raw runtime property value.
func (i *Instance) SetRuntimeProperty(key string, value interface{}) {
	i.store.Set(key, value)
}

// Workspace returns the instance's workspace directory path.
func (i *Instance) Workspace() (string, bool) {
	raw, ok := i.store.Get(WorkspaceProperty)
	if !ok {
		return "", false
	}
	path, ok := raw.(string)
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// SetWorkspace records the instance's workspace directory path.
func (i *Instance) SetWorkspace(path string) {
	i.store.Set(WorkspaceProperty, path)
}

// ClearWorkspace removes the workspace property.
func (i *Instance) ClearWorkspace() {
	i.store.Delete(WorkspaceProperty)
}

// Sources re-reads and decodes the accumulated inventory document. A
// missing property yields an empty document.
func (i *Instance) Sources() (source.Document, error) {
	raw, ok := i.store.Get(SourcesProperty)
	if !ok {
		return source.NewDocument(), nil
	}
	return source.FromValue(raw)
}

// HasSources reports whether a non-empty inventory document is persisted.
func (i *Instance) HasSources() bool {
	doc, err := i.Sources()
	if err != nil {
		return false
	}
	return len(doc) > 0
}

// SetSources persists the accumulated inventory document.
func (i *Instance) SetSources(doc source.Document) {
	i.store.Set(SourcesProperty, doc.ToValue())
}

// SetResult persists the structured playbook run result for diagnostics.
func (i *Instance) SetResult(result interface{}) {
	i.store.Set(ResultProperty, normalizeValue(result))
}

// ClearAll removes every runtime property, reserved or not. Called at
// instance-delete time.
func (i *Instance) ClearAll() {
	for _, key := range i.store.Keys() {
		i.store.Delete(key)
	}
}

// normalizeValue flattens typed values into the plain nested-map shape the
// engine store expects, mirroring a serialization round-trip.
func normalizeValue(value interface{}) interface{} {
	data, err := yaml.Marshal(value)
	if err != nil {
		return value
	}
	var out interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return value
	}
	return out
}

// View is a lifecycle operation's window onto the topology. Exactly two
// implementations exist: NodeView and RelationshipView.
type View interface {
	// Node returns the node the operation's persisted state belongs to
	// (the source side for relationships).
	Node() *Node

	// Instance returns the owning instance (the source side for
	// relationships).
	Instance() *Instance

	// DeploymentID identifies the deployment for group queries.
	DeploymentID() string
}

// NodeView is the context of an operation on a single node instance.
type NodeView struct {
	node         *Node
	instance     *Instance
	deploymentID string
}

// NewNodeView builds a NodeView.
func NewNodeView(node *Node, instance *Instance, deploymentID string) *NodeView {
	return &NodeView{node: node, instance: instance, deploymentID: deploymentID}
}

func (v *NodeView) Node() *Node          { return v.node }
func (v *NodeView) Instance() *Instance  { return v.instance }
func (v *NodeView) DeploymentID() string { return v.deploymentID }

// RelationshipView is the context of an operation on a relationship. State
// is owned by the source side; host configuration is derived from the
// target side.
type RelationshipView struct {
	source *NodeView
	target *NodeView
}

// NewRelationshipView builds a RelationshipView from its two sides.
func NewRelationshipView(src, target *NodeView) *RelationshipView {
	return &RelationshipView{source: src, target: target}
}

func (v *RelationshipView) Node() *Node          { return v.source.Node() }
func (v *RelationshipView) Instance() *Instance  { return v.source.Instance() }
func (v *RelationshipView) DeploymentID() string { return v.source.DeploymentID() }

// Source returns the relationship's source side.
func (v *RelationshipView) Source() *NodeView { return v.source }

// Target returns the relationship's target side.
func (v *RelationshipView) Target() *NodeView { return v.target }
