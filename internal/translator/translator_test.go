package translator

import (
	"context"
	"errors"
	"testing"

	"rigger/internal/api"
	"rigger/internal/local"
	"rigger/internal/source"
	"rigger/internal/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDeploymentClient implements api.DeploymentClient for testing
type mockDeploymentClient struct {
	groups map[string][]string
	err    error
	calls  []string
}

func (m *mockDeploymentClient) DeploymentGroups(ctx context.Context, deploymentID string) (map[string][]string, error) {
	m.calls = append(m.calls, deploymentID)
	if m.err != nil {
		return nil, m.err
	}
	return m.groups, nil
}

func computeNode(name string, properties map[string]interface{}) *topology.Node {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return &topology.Node{
		Name:          name,
		Type:          "rigger.nodes.WebServer",
		TypeHierarchy: []string{"rigger.nodes.Root", topology.ComputeNodeType, "rigger.nodes.WebServer"},
		Properties:    properties,
	}
}

func computeView(name, instanceID string, properties map[string]interface{}) *topology.NodeView {
	instance := topology.NewInstance(instanceID, local.NewMemoryStore())
	return topology.NewNodeView(computeNode(name, properties), instance, "dep-1")
}

func TestBuildFromRelationshipDerivesTargetHostConfig(t *testing.T) {
	target := computeView("web", "web_abc123", map[string]interface{}{
		"agent_config": map[string]interface{}{"user": "ubuntu"},
	})
	target.Instance().SetRuntimeProperty(topology.IPProperty, "10.0.0.5")
	src := computeView("app", "app_xyz789", nil)
	rel := topology.NewRelationshipView(src, target)

	doc, err := New(nil).Build(context.Background(), rel, Options{})
	require.NoError(t, err)

	require.Contains(t, doc, "rigger.nodes.WebServer")
	vars := doc["rigger.nodes.WebServer"].Hosts["web_abc123"]
	require.NotNil(t, vars)
	assert.Equal(t, "10.0.0.5", vars[source.VarHost])
	assert.Equal(t, "ubuntu", vars[source.VarUser])
	assert.Equal(t, source.StrictHostKeyArgs, vars[source.VarSSHCommonArgs])
	assert.Equal(t, true, vars[source.VarBecome])
}

func TestBuildPrefersRuntimeIPOverStaticProperty(t *testing.T) {
	view := computeView("web", "web_1", map[string]interface{}{"ip": "192.168.1.10"})

	doc, err := New(nil).Build(context.Background(), view, Options{})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", doc["rigger.nodes.WebServer"].Hosts["web_1"][source.VarHost])

	view.Instance().SetRuntimeProperty(topology.IPProperty, "10.0.0.5")
	doc, err = New(nil).Build(context.Background(), view, Options{})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", doc["rigger.nodes.WebServer"].Hosts["web_1"][source.VarHost])
}

func TestBuildNonComputeWithoutOverridesIsInvalidTopology(t *testing.T) {
	node := &topology.Node{
		Name:          "bucket",
		Type:          "rigger.nodes.ObjectStore",
		TypeHierarchy: []string{"rigger.nodes.Root", "rigger.nodes.ObjectStore"},
		Properties:    map[string]interface{}{},
	}
	view := topology.NewNodeView(node, topology.NewInstance("bucket_1", local.NewMemoryStore()), "dep-1")

	_, err := New(nil).Build(context.Background(), view, Options{})
	require.Error(t, err)
	assert.True(t, api.IsInvalidTopology(err))
}

func TestBuildNonComputeWithPersistedSourcesReturnsThem(t *testing.T) {
	node := &topology.Node{
		Name:          "coordinator",
		Type:          "rigger.nodes.Root",
		TypeHierarchy: []string{"rigger.nodes.Root"},
		Properties:    map[string]interface{}{},
	}
	instance := topology.NewInstance("coordinator_1", local.NewMemoryStore())
	view := topology.NewNodeView(node, instance, "dep-1")

	persisted := source.Document{
		"webservers": {Hosts: map[string]source.Vars{"web-1": {source.VarHost: "10.0.0.5"}}},
	}
	instance.SetSources(persisted)

	doc, err := New(nil).Build(context.Background(), view, Options{})
	require.NoError(t, err)
	assert.True(t, persisted.Equal(doc))
}

func TestBuildOverridesWinOverDerivedIdentity(t *testing.T) {
	view := computeView("web", "web_1", nil)

	doc, err := New(nil).Build(context.Background(), view, Options{
		GroupName: "frontends",
		Hostname:  "vip",
		HostConfig: source.Vars{
			source.VarHost:          "203.0.113.9",
			source.VarSSHCommonArgs: source.StrictHostKeyArgs,
		},
	})
	require.NoError(t, err)

	require.Contains(t, doc, "frontends")
	assert.Equal(t, "203.0.113.9", doc["frontends"].Hosts["vip"][source.VarHost])
	// Caller config is used verbatim, never merged with derived values.
	assert.NotContains(t, doc["frontends"].Hosts["vip"], source.VarUser)
}

func TestBuildAddsDeploymentGroupsAsMemberOnlyEntries(t *testing.T) {
	client := &mockDeploymentClient{groups: map[string][]string{
		"monitored": {"web", "db"},
		"backups":   {"db"},
	}}
	view := computeView("web", "web_1", nil)

	doc, err := New(client).Build(context.Background(), view, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"dep-1"}, client.calls)
	require.Contains(t, doc, "monitored")
	hosts := doc["monitored"].Hosts
	require.Contains(t, hosts, "web_1")
	assert.Nil(t, hosts["web_1"], "auxiliary group entries must not duplicate host variables")
	assert.NotContains(t, doc, "backups")
}

func TestBuildTreatsMissingDeploymentClientAsNoGroups(t *testing.T) {
	client := &mockDeploymentClient{err: api.ErrNoDeploymentClient}
	view := computeView("web", "web_1", nil)

	doc, err := New(client).Build(context.Background(), view, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"rigger.nodes.WebServer"}, doc.GroupNames())
}

func TestBuildPropagatesOtherGroupLookupErrors(t *testing.T) {
	client := &mockDeploymentClient{err: errors.New("engine unavailable")}
	view := computeView("web", "web_1", nil)

	_, err := New(client).Build(context.Background(), view, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dep-1")
}

func TestBuildLayersOntoBaseWithoutMutatingIt(t *testing.T) {
	base := source.Document{
		"databases": {Hosts: map[string]source.Vars{"db-1": {source.VarHost: "10.0.0.7"}}},
	}
	view := computeView("web", "web_1", nil)

	doc, err := New(nil).Build(context.Background(), view, Options{Base: base})
	require.NoError(t, err)

	assert.Contains(t, doc, "databases")
	assert.Contains(t, doc, "rigger.nodes.WebServer")
	assert.NotContains(t, base, "rigger.nodes.WebServer")
}
