package resolver

import (
	"sort"
	"time"
)

// IndexedExport is one previously captured export, reduced to what impact
// analysis needs: which project it belongs to and which variable names it
// captured at export time.
type IndexedExport struct {
	ID         string          `json:"id"`
	Project    string          `json:"project"`
	Path       string          `json:"path"`
	ExportedAt time.Time       `json:"exported_at"`
	Variables  map[string]bool `json:"-"`
}

// ExportIndex is the full set of prior exports supplied by the caller.
type ExportIndex struct {
	Exports []IndexedExport
}

// ProjectImpact groups affected variables by owning project.
type ProjectImpact struct {
	Project   string   `json:"project"`
	Variables []string `json:"variables"`
}

// AffectedExport is one (export, variable) pair that would become stale if
// the target variable's value changed.
type AffectedExport struct {
	ExportID         string    `json:"export_id"`
	Project          string    `json:"project"`
	Path             string    `json:"path"`
	ExportedAt       time.Time `json:"exported_at"`
	AffectedVariable string    `json:"affected_variable"`
}

// ImpactReport answers "what else changes if this variable changes".
type ImpactReport struct {
	Target             VariableID       `json:"target"`
	AffectedProjects   []ProjectImpact  `json:"affected_projects"`
	AffectedExports    []AffectedExport `json:"affected_exports"`
	CrossProjectImpact bool             `json:"cross_project_impact"`
	Recommendations    []string         `json:"recommendations"`
}

// AffectedVariableCount returns the number of transitively dependent
// variables in the report, excluding the target itself.
func (r *ImpactReport) AffectedVariableCount() int {
	count := 0
	for _, p := range r.AffectedProjects {
		count += len(p.Variables)
	}
	return count
}

// AnalyzeImpact walks the transpose graph breadth-first from the target,
// collecting every transitively dependent variable grouped by project, and
// correlates the result with prior exports to report which would become
// stale. The export correlation considers the target variable itself in
// addition to its dependents and deduplicates on (export, variable) pairs.
// This is a pure query: it mutates nothing and decides no policy.
func AnalyzeImpact(snap *Snapshot, target VariableID, index ExportIndex) (*ImpactReport, error) {
	if _, ok := snap.Lookup(target); !ok {
		return nil, newError(ErrDanglingReference, "variable %s not found", target)
	}

	graph := BuildGraph(snap)
	dependents := graph.TransitiveDependents(target)
	sortIDs(dependents)

	byProject := make(map[string][]string)
	cross := false
	for _, dep := range dependents {
		byProject[dep.Project] = append(byProject[dep.Project], dep.Name)
		if dep.Project != target.Project {
			cross = true
		}
	}

	projects := make([]ProjectImpact, 0, len(byProject))
	for name, vars := range byProject {
		sort.Strings(vars)
		projects = append(projects, ProjectImpact{Project: name, Variables: vars})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Project < projects[j].Project })

	report := &ImpactReport{
		Target:             target,
		AffectedProjects:   projects,
		AffectedExports:    collectAffectedExports(target, dependents, index),
		CrossProjectImpact: cross,
	}
	report.Recommendations = recommendations(report)
	return report, nil
}

// collectAffectedExports matches the target plus every dependent against
// the export index: an export is affected once per captured variable that
// would change.
func collectAffectedExports(target VariableID, dependents []VariableID, index ExportIndex) []AffectedExport {
	affected := append([]VariableID{target}, dependents...)
	seen := make(map[string]bool)
	var result []AffectedExport

	for _, v := range affected {
		for _, export := range index.Exports {
			if export.Project != v.Project || !export.Variables[v.Name] {
				continue
			}
			key := export.ID + "\x00" + v.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, AffectedExport{
				ExportID:         export.ID,
				Project:          export.Project,
				Path:             export.Path,
				ExportedAt:       export.ExportedAt,
				AffectedVariable: v.Name,
			})
		}
	}
	return result
}

func recommendations(r *ImpactReport) []string {
	recs := []string{"Review all affected variables before making changes"}

	if len(r.AffectedProjects) > 1 {
		recs = append(recs, "Consider the impact on other projects")
	} else {
		recs = append(recs, "Impact is contained within current project")
	}

	if len(r.AffectedExports) > 0 {
		recs = append(recs, "Update affected exports after changes")
	} else {
		recs = append(recs, "No exports will be affected")
	}

	if r.AffectedVariableCount() > 0 {
		recs = append(recs, "Test dependent variables after making changes")
	} else {
		recs = append(recs, "No dependent variables found")
	}
	return recs
}
