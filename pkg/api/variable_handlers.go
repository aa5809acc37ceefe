package api

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/platinummonkey/envlink/pkg/httputil"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// envVarRequest is the request body for variable create/update. Exactly one
// of the three value fields must be set.
type envVarRequest struct {
	Name        string  `json:"name"`
	RawValue    *string `json:"raw_value"`
	LinkedTo    *string `json:"linked_to"`
	ConcatParts *string `json:"concat_parts"`
	Description string  `json:"description"`
}

// createEnvVar handles POST /api/v1/projects/{project}/variables
func (s *Server) createEnvVar(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	project, err := s.storage.GetProject(vars["project"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var req envVarRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}
	if !namePattern.MatchString(req.Name) {
		httputil.WriteValidationError(w, "name may only contain letters, digits, underscore, and hyphen")
		return
	}
	if existing, err := s.storage.GetEnvVar(project.Name, req.Name); err == nil && existing != nil {
		httputil.WriteConflict(w, fmt.Sprintf("variable %s:%s already exists", project.Name, req.Name))
		return
	}

	envVar := &EnvVar{
		ProjectID:   project.ID,
		Project:     project.Name,
		Name:        req.Name,
		RawValue:    req.RawValue,
		LinkedTo:    req.LinkedTo,
		ConcatParts: req.ConcatParts,
		Description: req.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if !s.validateEnvVar(w, envVar) {
		return
	}

	if err := s.storage.CreateEnvVar(envVar); err != nil {
		s.logError("create variable failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, envVar)
}

// validateEnvVar checks the stored form of a new or updated variable
// against the rest of the registry: the value must parse to exactly one
// kind, every reference must exist, and the change must not introduce a
// cycle. Writes the error response and returns false on failure.
func (s *Server) validateEnvVar(w http.ResponseWriter, envVar *EnvVar) bool {
	if _, err := resolver.ParseValueKind(resolver.StoredRecord{
		RawValue:    envVar.RawValue,
		LinkedTo:    envVar.LinkedTo,
		ConcatParts: envVar.ConcatParts,
	}); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return false
	}

	allVars, err := s.storage.ListAllEnvVars()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return false
	}

	// Build the snapshot as it would look after the write.
	next := make([]*EnvVar, 0, len(allVars)+1)
	for _, ev := range allVars {
		if ev.Project == envVar.Project && ev.Name == envVar.Name {
			continue
		}
		next = append(next, ev)
	}
	next = append(next, envVar)
	snap := SnapshotFromEnvVars(next)

	id := resolver.VariableID{Project: envVar.Project, Name: envVar.Name}
	graph := resolver.BuildGraph(snap)
	if danglingErr := graph.DanglingError(id); danglingErr != nil {
		httputil.WriteValidationError(w, danglingErr.Error())
		return false
	}
	if cycleErr := graph.DetectCycles()[id]; cycleErr != nil {
		httputil.WriteValidationError(w, cycleErr.Error())
		return false
	}
	return true
}

// listEnvVars handles GET /api/v1/projects/{project}/variables
func (s *Server) listEnvVars(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	if _, err := s.storage.GetProject(vars["project"]); err != nil {
		writeStorageError(w, err)
		return
	}

	envVars, err := s.storage.ListEnvVars(vars["project"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	sort.Slice(envVars, func(i, j int) bool { return envVars[i].Name < envVars[j].Name })
	httputil.WriteSuccess(w, envVars)
}

// getEnvVar handles GET /api/v1/projects/{project}/variables/{name}
func (s *Server) getEnvVar(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	envVar, err := s.storage.GetEnvVar(vars["project"], vars["name"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	httputil.WriteSuccess(w, envVar)
}

// updateEnvVar handles PUT /api/v1/projects/{project}/variables/{name}
func (s *Server) updateEnvVar(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	envVar, err := s.storage.GetEnvVar(vars["project"], vars["name"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var req envVarRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	// The update replaces the value wholesale: whichever kind the request
	// carries becomes the variable's kind.
	envVar.RawValue = req.RawValue
	envVar.LinkedTo = req.LinkedTo
	envVar.ConcatParts = req.ConcatParts
	if req.Description != "" {
		envVar.Description = req.Description
	}
	envVar.UpdatedAt = time.Now()

	if !s.validateEnvVar(w, envVar) {
		return
	}

	if err := s.storage.UpdateEnvVar(envVar); err != nil {
		s.logError("update variable failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, envVar)
}

// deleteEnvVar handles DELETE /api/v1/projects/{project}/variables/{name}.
// Deletion is refused while other variables depend on this one, unless
// ?force=true.
func (s *Server) deleteEnvVar(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	envVar, err := s.storage.GetEnvVar(vars["project"], vars["name"])
	if err != nil {
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
		graph := resolver.BuildGraph(snap)
		id := resolver.VariableID{Project: envVar.Project, Name: envVar.Name}
		if dependents := graph.Dependents(id); len(dependents) > 0 {
			httputil.WriteConflict(w, fmt.Sprintf(
				"variable %s is referenced by %d variable(s) (first: %s); use force=true to delete anyway",
				id, len(dependents), dependents[0]))
			return
		}
	}

	if err := s.storage.DeleteEnvVar(envVar.Project, envVar.Name); err != nil {
		s.logError("delete variable failed", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listLinkable handles GET /api/v1/projects/{project}/variables/{name}/linkable.
// It returns the variables eligible as link targets for the named variable:
// everything except itself and anything that (transitively) depends on it,
// which would close a cycle.
func (s *Server) listLinkable(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	envVar, err := s.storage.GetEnvVar(vars["project"], vars["name"])
	if err != nil {
		writeStorageError(w, err)
		return
	}

	snap, err := LoadSnapshot(s.storage)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	id := resolver.VariableID{Project: envVar.Project, Name: envVar.Name}
	graph := resolver.BuildGraph(snap)
	excluded := map[resolver.VariableID]bool{id: true}
	for _, dep := range graph.TransitiveDependents(id) {
		excluded[dep] = true
	}

	linkable := make([]resolver.VariableID, 0, snap.Len())
	for _, candidate := range snap.SortedIDs() {
		if !excluded[candidate] {
			linkable = append(linkable, candidate)
		}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"variable": id,
		"linkable": linkable,
	})
}
