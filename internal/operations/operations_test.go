package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rigger/internal/api"
	"rigger/internal/local"
	"rigger/internal/runner"
	"rigger/internal/source"
	"rigger/internal/topology"
	"rigger/internal/translator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner implements PlaybookRunner for testing
type mockRunner struct {
	requests []runner.Request
	result   *runner.Result
	err      error
}

func (m *mockRunner) Run(ctx context.Context, req runner.Request) (*runner.Result, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &runner.Result{Raw: map[string]interface{}{}}, nil
}

func computeView(t *testing.T, name, instanceID string) *topology.NodeView {
	t.Helper()
	node := &topology.Node{
		Name:          name,
		Type:          "rigger.nodes.WebServer",
		TypeHierarchy: []string{"rigger.nodes.Root", topology.ComputeNodeType, "rigger.nodes.WebServer"},
		Properties:    map[string]interface{}{"ip": "10.0.0.5"},
	}
	return topology.NewNodeView(node, topology.NewInstance(instanceID, local.NewMemoryStore()), "dep-1")
}

func appView(t *testing.T) *topology.NodeView {
	t.Helper()
	node := &topology.Node{
		Name:          "app",
		Type:          "rigger.nodes.Application",
		TypeHierarchy: []string{"rigger.nodes.Root", "rigger.nodes.Application"},
		Properties:    map[string]interface{}{},
	}
	return topology.NewNodeView(node, topology.NewInstance("app_1", local.NewMemoryStore()), "dep-1")
}

func writePlaybook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	playbook := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(playbook, []byte("- hosts: all\n  tasks: []\n"), 0o644))
	return playbook
}

func cleanupWorkspace(t *testing.T, ops *Operations, view topology.View) {
	t.Cleanup(func() { ops.DeleteWorkspace(view) })
}

func TestCreateWorkspaceInitializesState(t *testing.T) {
	ops := New(nil, nil, &mockRunner{})
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	cleanupWorkspace(t, ops, view)

	dir, ok := view.Instance().Workspace()
	require.True(t, ok)
	assert.DirExists(t, dir)

	doc, err := view.Instance().Sources()
	require.NoError(t, err)
	assert.Empty(t, doc, "sources start out empty")
}

func TestCleanupRemovesWorkspaceAndProperties(t *testing.T) {
	ops := New(nil, nil, &mockRunner{})
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	dir, _ := view.Instance().Workspace()

	ops.Cleanup(view)

	assert.NoDirExists(t, dir)
	_, ok := view.Instance().RuntimeProperty(topology.SourcesProperty)
	assert.False(t, ok, "all runtime properties are purged at delete time")
}

func TestEstablishAndUnlinkRoundTrip(t *testing.T) {
	ops := New(nil, nil, &mockRunner{})
	app := appView(t)
	relA := topology.NewRelationshipView(app, computeView(t, "web", "web_1"))
	relB := topology.NewRelationshipView(app, computeView(t, "web", "web_2"))

	_, err := ops.EstablishRelationship(context.Background(), relA, translator.Options{})
	require.NoError(t, err)
	merged, err := ops.EstablishRelationship(context.Background(), relB, translator.Options{})
	require.NoError(t, err)
	assert.Len(t, merged["rigger.nodes.WebServer"].Hosts, 2)

	// Establishing the same relationship again changes nothing.
	again, err := ops.EstablishRelationship(context.Background(), relB, translator.Options{})
	require.NoError(t, err)
	assert.True(t, merged.Equal(again))

	remaining, err := ops.UnlinkRelationship(context.Background(), relB, translator.Options{})
	require.NoError(t, err)
	assert.Contains(t, remaining["rigger.nodes.WebServer"].Hosts, "web_1")
	assert.NotContains(t, remaining["rigger.nodes.WebServer"].Hosts, "web_2")
}

func TestRunPlaybookWithExplicitDocumentSources(t *testing.T) {
	mock := &mockRunner{}
	ops := New(nil, nil, mock)
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	cleanupWorkspace(t, ops, view)

	doc := source.Document{
		"webservers": {Hosts: map[string]source.Vars{"web-1": {source.VarHost: "10.0.0.5"}}},
	}

	result, err := ops.RunPlaybook(context.Background(), view, RunRequest{
		Playbook: writePlaybook(t),
		Sources:  doc,
	})
	require.NoError(t, err)
	assert.NotNil(t, result)

	require.Len(t, mock.requests, 1)
	req := mock.requests[0]
	assert.FileExists(t, req.PlaybookPath)
	assert.FileExists(t, req.InventoryPath)

	data, err := os.ReadFile(req.InventoryPath)
	require.NoError(t, err)
	parsed, err := source.ParseDocument(data)
	require.NoError(t, err)
	assert.True(t, doc.Equal(parsed))
}

func TestRunPlaybookDerivesSourcesFromTopology(t *testing.T) {
	mock := &mockRunner{}
	ops := New(nil, nil, mock)
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	cleanupWorkspace(t, ops, view)

	_, err := ops.RunPlaybook(context.Background(), view, RunRequest{
		Playbook: writePlaybook(t),
	})
	require.NoError(t, err)

	require.Len(t, mock.requests, 1)
	data, err := os.ReadFile(mock.requests[0].InventoryPath)
	require.NoError(t, err)
	parsed, err := source.ParseDocument(data)
	require.NoError(t, err)
	require.Contains(t, parsed, "rigger.nodes.WebServer")
	assert.Equal(t, "10.0.0.5", parsed["rigger.nodes.WebServer"].Hosts["web_1"][source.VarHost])
}

func TestRunPlaybookReconcilesFailures(t *testing.T) {
	mock := &mockRunner{result: &runner.Result{
		Failures: []string{"h1"},
		Raw:      map[string]interface{}{"failures": []interface{}{"h1"}},
	}}
	ops := New(nil, nil, mock)
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	cleanupWorkspace(t, ops, view)

	result, err := ops.RunPlaybook(context.Background(), view, RunRequest{
		Playbook: writePlaybook(t),
	})
	require.Error(t, err)
	assert.True(t, api.IsHostFailure(err))
	assert.NotNil(t, result, "the result is returned alongside the reconciliation error")

	_, ok := view.Instance().RuntimeProperty(topology.ResultProperty)
	assert.True(t, ok)
}

func TestRunPlaybookPassesThroughRunSettings(t *testing.T) {
	mock := &mockRunner{}
	ops := New(nil, nil, mock)
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	cleanupWorkspace(t, ops, view)

	_, err := ops.RunPlaybook(context.Background(), view, RunRequest{
		Playbook:       writePlaybook(t),
		PrivateKeyPath: "/keys/id_ed25519",
		ExtraEnv:       map[string]string{"ANSIBLE_STDOUT_CALLBACK": "json"},
		ExtraArgs:      []string{"--check"},
	})
	require.NoError(t, err)

	require.Len(t, mock.requests, 1)
	req := mock.requests[0]
	assert.Equal(t, "/keys/id_ed25519", req.PrivateKeyPath)
	assert.Equal(t, "json", req.Env["ANSIBLE_STDOUT_CALLBACK"])
	assert.Equal(t, []string{"--check"}, req.ExtraArgs)
}

func TestRunPlaybookMissingPlaybookIsInvalidInput(t *testing.T) {
	ops := New(nil, nil, &mockRunner{})
	view := computeView(t, "web", "web_1")
	require.NoError(t, ops.CreateWorkspace(view))
	cleanupWorkspace(t, ops, view)

	_, err := ops.RunPlaybook(context.Background(), view, RunRequest{
		Playbook: filepath.Join(t.TempDir(), "absent.yaml"),
		Sources:  source.NewDocument(),
	})
	require.Error(t, err)
	assert.True(t, api.IsInvalidInput(err))
}
