package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/envlink/pkg/httputil"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// resolveRequest selects the scope of a resolution pass. With neither
// field set, everything resolves. Variable requires Project.
type resolveRequest struct {
	Project  string `json:"project,omitempty"`
	Variable string `json:"variable,omitempty"`
}

// resolveResponse is the wire form of a resolution result: string-keyed
// maps instead of struct-keyed, JSON-friendly.
type resolveResponse struct {
	Scope    string                               `json:"scope"`
	Resolved map[string]string                    `json:"resolved"`
	Errors   map[string]*resolver.ResolutionError `json:"errors"`
}

func toResolveResponse(scope resolver.Scope, result *resolver.Result) *resolveResponse {
	resp := &resolveResponse{
		Scope:    scope.String(),
		Resolved: make(map[string]string, len(result.Resolved)),
		Errors:   make(map[string]*resolver.ResolutionError, len(result.Errors)),
	}
	for id, value := range result.Resolved {
		resp.Resolved[id.String()] = value
	}
	for id, err := range result.Errors {
		resp.Errors[id.String()] = err
	}
	return resp
}

// resolve handles POST /api/v1/resolve
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var scope resolver.Scope
	switch {
	case req.Variable != "":
		if req.Project == "" {
			httputil.WriteValidationError(w, "variable scope requires project")
			return
		}
		scope = resolver.ScopeVariable(resolver.VariableID{Project: req.Project, Name: req.Variable})
	case req.Project != "":
		scope = resolver.ScopeProject(req.Project)
	default:
		scope = resolver.ScopeAll()
	}

	result, err := s.runResolve(scope)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, toResolveResponse(scope, result))
}

// resolveProject handles GET /api/v1/projects/{project}/resolve
func (s *Server) resolveProject(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	if _, err := s.storage.GetProject(vars["project"]); err != nil {
		writeStorageError(w, err)
		return
	}

	scope := resolver.ScopeProject(vars["project"])
	result, err := s.runResolve(scope)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, toResolveResponse(scope, result))
}

// runResolve loads a snapshot and resolves the scope through the result
// cache, recording pass metrics.
func (s *Server) runResolve(scope resolver.Scope) (*resolver.Result, error) {
	snap, err := LoadSnapshot(s.storage)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	start := time.Now()
	result := s.resolveCache.Resolve(snap, scope)

	if s.metrics != nil {
		errorKinds := make(map[string]int)
		foundCycle := false
		for _, resErr := range result.Errors {
			errorKinds[string(resErr.Kind)]++
			if resErr.Kind == resolver.ErrCircularReference {
				foundCycle = true
			}
		}
		s.metrics.RecordResolvePass(scope.String(), time.Since(start), errorKinds, foundCycle)
	}
	return result, nil
}
