package api

import (
	"context"
	"errors"
)

// PropertyStore is the engine-owned per-instance key-value store. Values
// are structured (nested maps, slices, scalars) and durable across
// lifecycle operations for the same instance.
//
// The engine serializes operations per instance but the plugin is not the
// sole writer, so callers must re-read immediately before every
// read-modify-write instead of caching values across calls.
type PropertyStore interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (interface{}, bool)

	// Set stores value under key, replacing any previous value.
	Set(key string, value interface{})

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string)

	// Keys returns all currently stored keys.
	Keys() []string
}

// ErrNoDeploymentClient is returned by a DeploymentClient when the engine
// offers no deployment-group service in the current execution environment
// (e.g. local workflow runs). Callers treat it as "no additional groups".
var ErrNoDeploymentClient = errors.New("no deployment client available")

// DeploymentClient queries the engine for named deployment groups.
type DeploymentClient interface {
	// DeploymentGroups returns group name -> member node names for the
	// given deployment. Returns ErrNoDeploymentClient when the engine
	// cannot serve group queries here.
	DeploymentGroups(ctx context.Context, deploymentID string) (map[string][]string, error)
}

// ResourceDownloader materializes a blueprint-relative resource to a local
// path and returns the absolute path it was written to. When destPath is
// empty the implementation picks a location.
type ResourceDownloader interface {
	Download(ctx context.Context, relativePath, destPath string) (string, error)
}
