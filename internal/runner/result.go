package runner

import (
	"rigger/internal/api"
	"rigger/internal/topology"
	"rigger/pkg/logging"
)

// Reconcile evaluates a run result against the failure and dark-host
// policy. The full payload is persisted on the owning instance before any
// condition is checked, so diagnostics survive a failed operation.
//
// Failures win over dark hosts; with failures suppressed, remaining dark
// hosts still raise the retryable condition.
func Reconcile(view topology.View, result *Result, ignoreFailures, ignoreDark bool) error {
	logging.Debug(subsystem, "reconciling result: failures=%v dark=%v", result.Failures, result.Dark)
	view.Instance().SetResult(result.Raw)

	if len(result.Failures) > 0 && !ignoreFailures {
		return api.NewHostFailureError(result.Failures)
	}
	if len(result.Dark) > 0 && !ignoreDark {
		return api.NewHostsUnreachableError(result.Dark)
	}
	return nil
}
