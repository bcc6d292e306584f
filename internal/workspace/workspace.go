// Package workspace manages the per-instance temp directory that holds the
// generated inventory, playbook copy and key files for one lifecycle
// operation, and resolves caller-supplied paths into it.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rigger/internal/api"
	"rigger/internal/source"
	"rigger/internal/topology"
	"rigger/pkg/logging"

	"github.com/google/uuid"
)

const subsystem = "Workspace"

const (
	hostsFileName   = "hosts"
	playbookDirName = "playbook"
)

// Create makes a fresh temp directory for the instance and records it in
// the workspace runtime property.
func Create(view topology.View) (string, error) {
	dir, err := os.MkdirTemp("", "rigger-workspace-")
	if err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}
	view.Instance().SetWorkspace(dir)
	logging.Debug(subsystem, "created workspace %s for instance %q", dir, view.Instance().ID)
	return dir, nil
}

// Delete removes the instance's workspace directory, best-effort. A missing
// directory or workspace property is not an error.
func Delete(view topology.View) {
	dir, ok := view.Instance().Workspace()
	if !ok {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logging.Warn(subsystem, "failed to remove workspace %s: %s", dir, err)
	}
	view.Instance().ClearWorkspace()
}

// MaterializeKeys rewrites inline private key material in doc's host
// variables into key files under dir with owner-only permission, replacing
// the inline value with the file path. Values that already resolve to an
// existing path are left alone, so processing the same document again is a
// no-op.
func MaterializeKeys(doc source.Document, dir string) error {
	for _, group := range doc {
		if group == nil {
			continue
		}
		for _, vars := range group.Hosts {
			if err := materializeVars(map[string]interface{}(vars), dir); err != nil {
				return err
			}
		}
	}
	return nil
}

// materializeVars mirrors the document walk on a single variable map: a
// private key entry at this level is handled and ends the walk, otherwise
// nested maps are descended into.
func materializeVars(vars map[string]interface{}, dir string) error {
	if vars == nil {
		return nil
	}
	raw, ok := vars[source.VarPrivateKeyFile]
	if !ok {
		for _, value := range vars {
			if nested, isMap := value.(map[string]interface{}); isMap {
				if err := materializeVars(nested, dir); err != nil {
					return err
				}
			}
		}
		return nil
	}
	material, ok := raw.(string)
	if !ok || material == "" {
		return nil
	}
	if _, err := os.Stat(material); err == nil {
		// Already a path on disk, nothing to do.
		return nil
	}
	keyPath := filepath.Join(dir, uuid.NewString())
	if err := os.WriteFile(keyPath, []byte(material), 0o600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	vars[source.VarPrivateKeyFile] = keyPath
	logging.Debug(subsystem, "materialized inline private key to %s", keyPath)
	return nil
}

// ResolvePlaybook turns a caller-supplied playbook path into an absolute
// path inside the workspace. The playbook's whole directory is copied in so
// adjacent roles and files travel with it. Paths that do not exist locally
// are fetched through the downloader first.
func ResolvePlaybook(ctx context.Context, view topology.View, downloader api.ResourceDownloader, playbookPath string) (string, error) {
	if playbookPath == "" {
		return "", api.NewInvalidInputError("playbook", "path must be a non-empty string")
	}
	dir, ok := view.Instance().Workspace()
	if !ok {
		return "", fmt.Errorf("instance %q has no workspace; was the create operation run?", view.Instance().ID)
	}

	localPath := playbookPath
	if _, err := os.Stat(localPath); err != nil {
		if !os.IsNotExist(err) {
			return "", api.NewInvalidInputError("playbook", fmt.Sprintf("cannot read %s: %s", playbookPath, err))
		}
		if downloader == nil {
			return "", api.NewInvalidInputError("playbook", fmt.Sprintf("path %s does not exist", playbookPath))
		}
		// Download into its own workspace subdirectory; the staging copy
		// below takes the playbook's whole parent directory.
		downloadDir := filepath.Join(dir, "download")
		if err := os.MkdirAll(downloadDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
		downloaded, derr := downloader.Download(ctx, playbookPath, filepath.Join(downloadDir, filepath.Base(playbookPath)))
		if derr != nil {
			return "", api.NewInvalidInputError("playbook", fmt.Sprintf("path %s does not exist and could not be downloaded: %s", playbookPath, derr))
		}
		localPath = downloaded
	}

	absPath, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve playbook path %s: %w", localPath, err)
	}

	stagedDir := filepath.Join(dir, playbookDirName)
	if err := os.RemoveAll(stagedDir); err != nil {
		return "", fmt.Errorf("failed to clear staged playbook directory: %w", err)
	}
	if err := os.MkdirAll(stagedDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staged playbook directory: %w", err)
	}
	if err := os.CopyFS(stagedDir, os.DirFS(filepath.Dir(absPath))); err != nil {
		return "", fmt.Errorf("failed to stage playbook directory: %w", err)
	}

	finalPath := filepath.Join(stagedDir, filepath.Base(absPath))
	if _, err := os.Stat(finalPath); err != nil {
		return "", api.NewInvalidInputError("playbook", fmt.Sprintf("staged playbook %s does not exist", finalPath))
	}
	return finalPath, nil
}

// ResolveSources turns caller-supplied inventory input into the path of a
// hosts file next to the staged playbook. Accepted inputs:
//
//   - a source.Document (or the equivalent nested-map shape): inline key
//     material is materialized, then the document is written as YAML;
//   - a multi-line string: written verbatim as the hosts file;
//   - a single-line string: used as a path if it exists and is readable,
//     downloaded otherwise.
func ResolveSources(ctx context.Context, view topology.View, downloader api.ResourceDownloader, sources interface{}, playbookPath string) (string, error) {
	dir, ok := view.Instance().Workspace()
	if !ok {
		return "", fmt.Errorf("instance %q has no workspace; was the create operation run?", view.Instance().ID)
	}
	hostsPath := filepath.Join(filepath.Dir(playbookPath), hostsFileName)

	switch typed := sources.(type) {
	case source.Document:
		return writeDocument(typed, dir, hostsPath)
	case map[string]interface{}:
		doc, err := source.FromValue(typed)
		if err != nil {
			return "", api.NewInvalidInputError("sources", err.Error())
		}
		return writeDocument(doc, dir, hostsPath)
	case string:
		return resolveSourcesString(ctx, downloader, typed, hostsPath)
	case nil:
		return "", api.NewInvalidInputError("sources", "no inventory sources were provided")
	default:
		return "", api.NewInvalidInputError("sources", fmt.Sprintf("expected a document or a string, got %T", sources))
	}
}

func writeDocument(doc source.Document, workspaceDir, hostsPath string) (string, error) {
	if err := MaterializeKeys(doc, workspaceDir); err != nil {
		return "", err
	}
	if _, err := os.Stat(hostsPath); err == nil {
		logging.Warn(subsystem, "inventory data was provided but %s already exists, overwriting", hostsPath)
	}
	data, err := doc.Marshal()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(hostsPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write hosts file: %w", err)
	}
	return hostsPath, nil
}

// resolveSourcesString decides between "inline inventory content" and "path
// to an inventory file". Content always has newlines; paths never do.
func resolveSourcesString(ctx context.Context, downloader api.ResourceDownloader, value, hostsPath string) (string, error) {
	if strings.Contains(value, "\n") {
		if err := os.WriteFile(hostsPath, []byte(value), 0o644); err != nil {
			return "", fmt.Errorf("failed to write hosts file: %w", err)
		}
		return hostsPath, nil
	}

	_, err := os.Stat(value)
	if err == nil {
		return value, nil
	}
	if !os.IsNotExist(err) {
		// The path is there but unreadable; re-downloading would mask a
		// permissions problem.
		return "", api.NewInvalidInputError("sources", fmt.Sprintf("cannot read %s: %s", value, err))
	}
	if downloader == nil {
		return "", api.NewInvalidInputError("sources", fmt.Sprintf("path %s does not exist", value))
	}
	downloaded, derr := downloader.Download(ctx, value, hostsPath)
	if derr != nil {
		return "", api.NewInvalidInputError("sources", fmt.Sprintf("path %s does not exist and could not be downloaded: %s", value, derr))
	}
	return downloaded, nil
}
