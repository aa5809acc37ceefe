package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/envlink/pkg/httputil"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// exportRequest is the request body for capturing an export. Git metadata
// describes the destination checkout and is supplied by the caller.
type exportRequest struct {
	ExportPath    string `json:"export_path"`
	GitRepoPath   string `json:"git_repo_path,omitempty"`
	GitBranch     string `json:"git_branch,omitempty"`
	GitCommitHash string `json:"git_commit_hash,omitempty"`
	GitRemoteURL  string `json:"git_remote_url,omitempty"`
	IsGitRepo     bool   `json:"is_git_repo"`
}

// createExport handles POST /api/v1/projects/{project}/exports. It resolves
// the project fresh and captures the result; a project whose resolution has
// any per-variable error cannot be exported.
func (s *Server) createExport(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	project, err := s.storage.GetProject(vars["project"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var req exportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ExportPath, "export_path") {
		return
	}

	result, err := s.runResolve(resolver.ScopeProject(project.Name))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if len(result.Errors) > 0 {
		httputil.WriteConflict(w, fmt.Sprintf(
			"project %q has %d unresolvable variable(s); fix them before exporting", project.Name, len(result.Errors)))
		return
	}

	values := make(map[string]string, len(result.Resolved))
	for id, value := range result.Resolved {
		values[id.Name] = value
	}

	export := &EnvExport{
		ID:             uuid.New().String(),
		ProjectID:      project.ID,
		Project:        project.Name,
		ExportPath:     req.ExportPath,
		ResolvedValues: values,
		ExportHash:     HashResolvedValues(values),
		ExportedAt:     time.Now(),
		GitRepoPath:    req.GitRepoPath,
		GitBranch:      req.GitBranch,
		GitCommitHash:  req.GitCommitHash,
		GitRemoteURL:   req.GitRemoteURL,
		IsGitRepo:      req.IsGitRepo,
	}

	if err := s.storage.CreateExport(export); err != nil {
		s.logError("create export failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, export)
}

// listExports handles GET /api/v1/projects/{project}/exports
func (s *Server) listExports(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	if _, err := s.storage.GetProject(vars["project"]); err != nil {
		writeStorageError(w, err)
		return
	}

	exports, err := s.storage.ListExports(vars["project"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, exports)
}

// getExport handles GET /api/v1/exports/{id}
func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	export, err := s.storage.GetExport(vars["id"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	httputil.WriteSuccess(w, export)
}

// deleteExport handles DELETE /api/v1/exports/{id}
func (s *Server) deleteExport(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	if _, err := s.storage.GetExport(vars["id"]); err != nil {
		writeStorageError(w, err)
		return
	}

	if err := s.storage.DeleteExport(vars["id"]); err != nil {
		s.logError("delete export failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// exportUpdateStatus reports whether one export still matches the current
// resolution of its project.
type exportUpdateStatus struct {
	ExportID    string    `json:"export_id"`
	Project     string    `json:"project"`
	ExportPath  string    `json:"export_path"`
	ExportedAt  time.Time `json:"exported_at"`
	CurrentHash string    `json:"current_hash"`
	StoredHash  string    `json:"stored_hash"`
	Stale       bool      `json:"stale"`
	Error       string    `json:"error,omitempty"`
}

// checkExportUpdates handles GET /api/v1/exports/check-updates?project=.
// It re-resolves each export's project and compares the canonical hash of
// the fresh result against the hash stored at capture time. Without a
// project filter, every export is checked.
func (s *Server) checkExportUpdates(w http.ResponseWriter, r *http.Request) {
	project := httputil.ParseQueryString(r, "project", "")
	if project != "" {
		if _, err := s.storage.GetProject(project); err != nil {
			writeStorageError(w, err)
			return
		}
	}

	exports, err := s.storage.ListExports(project)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	// One fresh resolution per project, shared across its exports.
	currentHashes := make(map[string]string)
	resolveErrors := make(map[string]string)
	statuses := make([]exportUpdateStatus, 0, len(exports))
	stale := 0

	for _, export := range exports {
		status := exportUpdateStatus{
			ExportID:   export.ID,
			Project:    export.Project,
			ExportPath: export.ExportPath,
			ExportedAt: export.ExportedAt,
			StoredHash: export.ExportHash,
		}

		hash, ok := currentHashes[export.Project]
		if !ok {
			if _, failed := resolveErrors[export.Project]; !failed {
				hash, err = s.currentProjectHash(export.Project)
				if err != nil {
					resolveErrors[export.Project] = err.Error()
				} else {
					currentHashes[export.Project] = hash
					ok = true
				}
			}
		}

		if !ok {
			status.Error = resolveErrors[export.Project]
		} else {
			status.CurrentHash = hash
			status.Stale = hash != export.ExportHash
			if status.Stale {
				stale++
			}
		}
		statuses = append(statuses, status)
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"checked": len(statuses),
		"stale":   stale,
		"exports": statuses,
	})
}

// currentProjectHash resolves a project and returns the canonical hash of
// its resolved values. Resolution errors make the hash undefined.
func (s *Server) currentProjectHash(project string) (string, error) {
	result, err := s.runResolve(resolver.ScopeProject(project))
	if err != nil {
		return "", err
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("project %q has %d unresolvable variable(s)", project, len(result.Errors))
	}

	values := make(map[string]string, len(result.Resolved))
	for id, value := range result.Resolved {
		values[id.Name] = value
	}
	return HashResolvedValues(values), nil
}
