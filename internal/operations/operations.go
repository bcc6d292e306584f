// Package operations exposes the lifecycle entry points the orchestration
// engine invokes: workspace create/delete, relationship establish/unlink,
// and playbook runs.
package operations

import (
	"context"
	"time"

	"rigger/internal/accumulator"
	"rigger/internal/api"
	"rigger/internal/runner"
	"rigger/internal/source"
	"rigger/internal/topology"
	"rigger/internal/translator"
	"rigger/internal/workspace"
	"rigger/pkg/logging"
)

const subsystem = "Operations"

// PlaybookRunner executes one playbook run. Implemented by runner.Runner;
// abstracted so operations can be tested without an installed runner.
type PlaybookRunner interface {
	Run(ctx context.Context, req runner.Request) (*runner.Result, error)
}

// Operations wires the translator, accumulator, workspace and runner into
// the engine-facing lifecycle surface.
type Operations struct {
	translator  *translator.Translator
	accumulator *accumulator.Accumulator
	runner      PlaybookRunner
	downloader  api.ResourceDownloader
}

// New builds the lifecycle surface. deployments and downloader may be nil
// when the engine does not provide them.
func New(deployments api.DeploymentClient, downloader api.ResourceDownloader, run PlaybookRunner) *Operations {
	t := translator.New(deployments)
	return &Operations{
		translator:  t,
		accumulator: accumulator.New(t),
		runner:      run,
		downloader:  downloader,
	}
}

// CreateWorkspace is the instance-create operation: a fresh temp workspace
// plus an empty accumulated inventory.
func (o *Operations) CreateWorkspace(view topology.View) error {
	if _, err := workspace.Create(view); err != nil {
		return err
	}
	view.Instance().SetSources(source.NewDocument())
	return nil
}

// DeleteWorkspace removes the instance workspace, best-effort.
func (o *Operations) DeleteWorkspace(view topology.View) {
	workspace.Delete(view)
}

// Cleanup is the instance-delete operation: workspace removal followed by a
// purge of every runtime property the plugin wrote.
func (o *Operations) Cleanup(view topology.View) {
	workspace.Delete(view)
	view.Instance().ClearAll()
}

// EstablishRelationship translates the relationship's target into an
// inventory fragment and merges it into the source instance's persisted
// document. Running it again for the same relationship is a no-op.
func (o *Operations) EstablishRelationship(ctx context.Context, rel *topology.RelationshipView, opts translator.Options) (source.Document, error) {
	fragment, err := o.translator.Build(ctx, rel, opts)
	if err != nil {
		return nil, err
	}
	return o.accumulator.Add(rel, fragment)
}

// UnlinkRelationship withdraws the relationship's contribution from the
// source instance's persisted document.
func (o *Operations) UnlinkRelationship(ctx context.Context, rel *topology.RelationshipView, opts translator.Options) (source.Document, error) {
	fragment, err := o.translator.Build(ctx, rel, opts)
	if err != nil {
		return nil, err
	}
	return o.accumulator.Remove(rel, fragment)
}

// RunRequest describes one engine-invoked playbook run.
type RunRequest struct {
	// Playbook is the playbook path, relative to the blueprint or local.
	Playbook string

	// Sources is caller-supplied inventory input (document, path or inline
	// content). Nil derives the inventory from topology instead.
	Sources interface{}

	// GroupName, Hostname and HostConfig are translation overrides used
	// when Sources is nil.
	GroupName  string
	Hostname   string
	HostConfig source.Vars

	// PrivateKeyPath is handed to the runner via --private-key.
	PrivateKeyPath string

	// ExtraEnv is injected into the runner process only, for the duration
	// of the run.
	ExtraEnv map[string]string

	// ExtraArgs are appended to the runner invocation.
	ExtraArgs []string

	// Timeout bounds the run; zero uses the runner's default.
	Timeout time.Duration

	// IgnoreFailures and IgnoreDark suppress the corresponding result
	// conditions independently.
	IgnoreFailures bool
	IgnoreDark     bool
}

// RunPlaybook resolves the inventory and playbook into the instance
// workspace, invokes the runner, and reconciles the result. The result is
// returned alongside any reconciliation error so callers can inspect it
// either way.
func (o *Operations) RunPlaybook(ctx context.Context, view topology.View, req RunRequest) (*runner.Result, error) {
	sources := req.Sources
	if sources == nil {
		doc, err := o.accumulator.Remerged(ctx, view, translator.Options{
			GroupName:  req.GroupName,
			Hostname:   req.Hostname,
			HostConfig: req.HostConfig,
		})
		if err != nil {
			return nil, err
		}
		sources = doc
	}

	playbookPath, err := workspace.ResolvePlaybook(ctx, view, o.downloader, req.Playbook)
	if err != nil {
		return nil, err
	}
	logging.Debug(subsystem, "resolved playbook to %s", playbookPath)

	inventoryPath, err := workspace.ResolveSources(ctx, view, o.downloader, sources, playbookPath)
	if err != nil {
		return nil, err
	}
	logging.Debug(subsystem, "resolved inventory to %s", inventoryPath)

	result, err := o.runner.Run(ctx, runner.Request{
		InventoryPath:  inventoryPath,
		PlaybookPath:   playbookPath,
		PrivateKeyPath: req.PrivateKeyPath,
		Timeout:        req.Timeout,
		Env:            req.ExtraEnv,
		ExtraArgs:      req.ExtraArgs,
	})
	if err != nil {
		return nil, err
	}
	return result, runner.Reconcile(view, result, req.IgnoreFailures, req.IgnoreDark)
}
