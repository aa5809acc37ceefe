package api

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"net/http"

	"github.com/platinummonkey/envlink/pkg/httputil"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// createProject handles POST /api/v1/projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var project Project
	if !httputil.ParseJSONOrError(w, r, &project) {
		return
	}
	if !httputil.RequireNonEmpty(w, project.Name, "name") {
		return
	}
	if !namePattern.MatchString(project.Name) {
		httputil.WriteValidationError(w, "name may only contain letters, digits, underscore, and hyphen")
		return
	}
	if existing, err := s.storage.GetProject(project.Name); err == nil && existing != nil {
		httputil.WriteConflict(w, fmt.Sprintf("project %q already exists", project.Name))
		return
	}

	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()

	if err := s.storage.CreateProject(&project); err != nil {
		s.logError("create project failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, project)
}

// listProjects handles GET /api/v1/projects
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.storage.ListProjects()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	httputil.WriteSuccess(w, projects)
}

// getProject handles GET /api/v1/projects/{name}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	project, err := s.storage.GetProject(vars["name"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	// Include the project's variables in the detail response.
	envVars, err := s.storage.ListEnvVars(project.Name)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	sort.Slice(envVars, func(i, j int) bool { return envVars[i].Name < envVars[j].Name })

	httputil.WriteSuccess(w, struct {
		*Project
		Variables []*EnvVar `json:"variables"`
	}{Project: project, Variables: envVars})
}

// updateProject handles PUT /api/v1/projects/{name}
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	project, err := s.storage.GetProject(vars["name"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var update struct {
		Description *string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}
	if update.Description != nil {
		project.Description = *update.Description
	}
	project.UpdatedAt = time.Now()

	if err := s.storage.UpdateProject(project); err != nil {
		s.logError("update project failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, project)
}

// deleteProject handles DELETE /api/v1/projects/{name}. Deletion is refused
// while variables in other projects still reference this one, unless
// ?force=true.
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	name := vars["name"]
	if _, err := s.storage.GetProject(name); err != nil {
		writeStorageError(w, err)
		return
	}

	force, err := httputil.ParseQueryBool(r, "force", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if !force {
		snap, err := LoadSnapshot(s.storage)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		if dependents := externalDependents(snap, name); len(dependents) > 0 {
			httputil.WriteConflict(w, fmt.Sprintf(
				"project %q is referenced by %d variable(s) in other projects (first: %s); use force=true to delete anyway",
				name, len(dependents), dependents[0]))
			return
		}
	}

	if err := s.storage.DeleteProject(name); err != nil {
		s.logError("delete project failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// externalDependents returns the identities of variables outside project
// that reference any variable inside it.
func externalDependents(snap *resolver.Snapshot, project string) []resolver.VariableID {
	graph := resolver.BuildGraph(snap)
	seen := make(map[resolver.VariableID]bool)
	var result []resolver.VariableID

	for _, id := range snap.SortedIDs() {
		if id.Project != project {
			continue
		}
		for _, dep := range graph.Dependents(id) {
			if dep.Project == project || seen[dep] {
				continue
			}
			seen[dep] = true
			result = append(result, dep)
		}
	}
	return result
}

func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteInternalError(w, err)
}
