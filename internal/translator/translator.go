// Package translator derives an inventory document fragment from a single
// topology view: one group for the compute host itself, plus a member-only
// entry for every deployment group the node belongs to.
package translator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"rigger/internal/api"
	"rigger/internal/source"
	"rigger/internal/topology"
	"rigger/pkg/logging"
)

const subsystem = "Translator"

// Options carries the caller's overrides for a translation. All fields are
// optional.
type Options struct {
	// GroupName overrides the inventory group name (default: node type).
	GroupName string

	// Hostname overrides the inventory hostname (default: instance id).
	Hostname string

	// HostConfig replaces the derived host variables entirely. It is used
	// verbatim; the translator only warns when it lacks the strict host
	// key checking override.
	HostConfig source.Vars

	// Base is an existing document the fragment is layered onto. It is
	// cloned, never mutated.
	Base source.Document
}

// Translator builds inventory fragments from topology views.
type Translator struct {
	deployments api.DeploymentClient
}

// New creates a Translator. deployments may be nil when the engine offers
// no group query service.
func New(deployments api.DeploymentClient) *Translator {
	return &Translator{deployments: deployments}
}

// Build derives an inventory document from the view.
//
// For relationship views the host side is the target; for node views it is
// the node itself. A node view whose node is not compute-capable but
// already carries persisted sources returns those unchanged, so playbooks
// can run against inventory accumulated by relationships.
func (t *Translator) Build(ctx context.Context, view topology.View, opts Options) (source.Document, error) {
	var hostSide *topology.NodeView
	switch v := view.(type) {
	case *topology.RelationshipView:
		hostSide = v.Target()
	case *topology.NodeView:
		if !v.Node().IsCompute() && v.Instance().HasSources() {
			return v.Instance().Sources()
		}
		hostSide = v
	default:
		return nil, api.NewInvalidTopologyError(fmt.Sprintf("unsupported topology view %T", view))
	}

	hostConfig := opts.HostConfig
	if hostConfig == nil {
		hostConfig = hostConfigFromCompute(hostSide)
	}

	groupName, hostname, err := groupNameAndHostname(hostSide, opts.GroupName, opts.Hostname)
	if err != nil {
		return nil, err
	}

	if !hasStrictHostKeyOverride(hostConfig) {
		logging.Warn(subsystem,
			"host configuration for %q does not include %q in %s; this is required for automated host key approval",
			hostname, source.StrictHostKeyArgs, source.VarSSHCommonArgs)
	}

	additionalGroups, err := t.additionalNodeGroups(ctx, hostSide.Node().Name, view.DeploymentID())
	if err != nil {
		return nil, err
	}

	doc := source.NewDocument()
	if opts.Base != nil {
		doc = opts.Base.Clone()
	}
	doc.Merge(source.Document{
		groupName: {Hosts: map[string]source.Vars{hostname: hostConfig}},
	})
	for _, group := range additionalGroups {
		doc.Merge(source.Document{
			group: {Hosts: map[string]source.Vars{hostname: nil}},
		})
	}
	return doc, nil
}

// groupNameAndHostname resolves the inventory identity of the host side.
// Extending the compute node type and using the subtype as an Ansible group
// name is supported: the declared node type is the group fallback.
func groupNameAndHostname(v *topology.NodeView, groupName, hostname string) (string, string, error) {
	if groupName == "" && hostname == "" && !v.Node().IsCompute() {
		return "", "", api.NewInvalidTopologyError(
			"no sources, group_name or hostname was provided, and no compute node was provided to generate them from")
	}
	if groupName == "" {
		groupName = v.Node().Type
	}
	if hostname == "" {
		hostname = v.Instance().ID
	}
	return groupName, hostname, nil
}

// hostConfigFromCompute derives the Ansible connection variables for a
// compute node. The live runtime IP wins over the declared ip property.
func hostConfigFromCompute(v *topology.NodeView) source.Vars {
	address, ok := v.Instance().RuntimeProperty(topology.IPProperty)
	if !ok {
		address, _ = v.Node().Property(topology.IPProperty)
	}
	agent := v.Node().AgentConfig()
	become := true
	if raw, ok := v.Node().Property(source.VarBecome); ok {
		if b, isBool := raw.(bool); isBool {
			become = b
		}
	}
	return source.Vars{
		source.VarHost:           address,
		source.VarUser:           agent["user"],
		source.VarPassword:       agent["password"],
		source.VarPrivateKeyFile: agent["key"],
		source.VarSSHCommonArgs:  source.StrictHostKeyArgs,
		source.VarBecome:         become,
	}
}

func hasStrictHostKeyOverride(vars source.Vars) bool {
	raw, ok := vars[source.VarSSHCommonArgs]
	if !ok {
		return false
	}
	args, ok := raw.(string)
	return ok && strings.Contains(args, source.StrictHostKeyArgs)
}

// additionalNodeGroups returns the deployment groups whose membership
// includes nodeName, so a host can be reused in multiple inventory groups
// without duplicating its variables.
func (t *Translator) additionalNodeGroups(ctx context.Context, nodeName, deploymentID string) ([]string, error) {
	if t.deployments == nil {
		return nil, nil
	}
	deploymentGroups, err := t.deployments.DeploymentGroups(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, api.ErrNoDeploymentClient) {
			logging.Warn(subsystem,
				"no deployment client available, skipping group lookup for deployment %q", deploymentID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up groups for deployment %q: %w", deploymentID, err)
	}
	var groups []string
	for groupName, members := range deploymentGroups {
		if groupName != "" && slices.Contains(members, nodeName) {
			groups = append(groups, groupName)
		}
	}
	slices.Sort(groups)
	return groups, nil
}
