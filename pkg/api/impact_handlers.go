package api

import (
	"net/http"

	"github.com/platinummonkey/envlink/pkg/httputil"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// exportIndex builds the resolver's export view from stored export records.
// An empty project lists exports across every project.
func (s *Server) exportIndex(project string) (resolver.ExportIndex, error) {
	exports, err := s.storage.ListExports(project)
	if err != nil {
		return resolver.ExportIndex{}, err
	}

	index := resolver.ExportIndex{Exports: make([]resolver.IndexedExport, 0, len(exports))}
	for _, export := range exports {
		indexed := resolver.IndexedExport{
			ID:         export.ID,
			Project:    export.Project,
			Path:       export.ExportPath,
			ExportedAt: export.ExportedAt,
			Variables:  make(map[string]bool, len(export.ResolvedValues)),
		}
		for name := range export.ResolvedValues {
			indexed.Variables[name] = true
		}
		index.Exports = append(index.Exports, indexed)
	}
	return index, nil
}

// getImpact handles GET /api/v1/projects/{project}/variables/{name}/impact
func (s *Server) getImpact(w http.ResponseWriter, r *http.Request) {
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
	index, err := s.exportIndex("")
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	target := resolver.VariableID{Project: envVar.Project, Name: envVar.Name}
	report, analyzeErr := resolver.AnalyzeImpact(snap, target, index)
	if analyzeErr != nil {
		httputil.WriteNotFoundError(w, analyzeErr.Error())
		return
	}

	httputil.WriteSuccess(w, report)
}

// getAffectedExports handles
// GET /api/v1/projects/{project}/variables/{name}/affected-exports
func (s *Server) getAffectedExports(w http.ResponseWriter, r *http.Request) {
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
	index, err := s.exportIndex("")
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	target := resolver.VariableID{Project: envVar.Project, Name: envVar.Name}
	report, analyzeErr := resolver.AnalyzeImpact(snap, target, index)
	if analyzeErr != nil {
		httputil.WriteNotFoundError(w, analyzeErr.Error())
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"variable":         target,
		"affected_exports": report.AffectedExports,
	})
}
