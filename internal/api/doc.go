// Package api defines the contracts between the plugin and the
// orchestration engine that hosts it.
//
// The engine supplies three collaborators, abstracted here as interfaces so
// that lifecycle code never depends on a concrete engine client:
//
//   - PropertyStore: the durable per-instance key-value store that carries
//     state (workspace path, accumulated sources, last run result) across
//     lifecycle operations.
//   - DeploymentClient: the deployment-group query service used to place a
//     host into auxiliary inventory groups.
//   - ResourceDownloader: materializes blueprint-relative resources
//     (playbooks, inventory files) onto the local filesystem.
//
// The package also defines the typed error kinds shared by every layer.
// Errors divide into non-recoverable kinds (InvalidTopologyError,
// InvalidInputError, HostFailureError), which fail the lifecycle operation
// permanently, and the retryable kind (HostsUnreachableError), which asks
// the engine to reschedule the same operation. Use IsRetryable to make the
// distinction without inspecting concrete types.
package api
