package resolver


// Scope selects which variables a resolution pass computes. The zero
// value resolves everything.
type Scope struct {
	Project  string      // limit to one project when non-empty
	Variable *VariableID // limit to one variable when non-nil
}

// ScopeAll resolves every variable in the snapshot.
func ScopeAll() Scope {
	return Scope{}
}

// ScopeProject resolves every variable owned by one project.
func ScopeProject(name string) Scope {
	return Scope{Project: name}
}

// ScopeVariable resolves a single variable.
func ScopeVariable(id VariableID) Scope {
	return Scope{Variable: &id}
}

func (s Scope) String() string {
	switch {
	case s.Variable != nil:
		return "variable:" + s.Variable.String()
	case s.Project != "":
		return "project:" + s.Project
	default:
		return "all"
	}
}

// contains reports whether id is selected by the scope.
func (s Scope) contains(id VariableID) bool {
	switch {
	case s.Variable != nil:
		return *s.Variable == id
	case s.Project != "":
		return s.Project == id.Project
	default:
		return true
	}
}

// Result is the outcome of one resolution pass. Every requested variable
// appears in exactly one of the two maps: resolution is success-or-error
// at variable granularity, never a partial string.
type Result struct {
	Resolved map[VariableID]string           `json:"resolved"`
	Errors   map[VariableID]*ResolutionError `json:"errors"`
}

// Resolve computes the final string value of every variable selected by
// the scope. It builds the dependency graph, detects cycles up front, then
// evaluates values post-order with per-pass memoization so shared
// dependencies are computed once regardless of fan-in. A failed dependency
// fails its dependents with the inherited error kind; unrelated variables
// still resolve.
func Resolve(snap *Snapshot, scope Scope) *Result {
	graph := BuildGraph(snap)
	ev := &evaluator{
		graph:  graph,
		cycles: graph.DetectCycles(),
		values: make(map[VariableID]string, snap.Len()),
		failed: make(map[VariableID]*ResolutionError),
	}

	result := &Result{
		Resolved: make(map[VariableID]string),
		Errors:   make(map[VariableID]*ResolutionError),
	}

	if scope.Variable != nil {
		id := *scope.Variable
		if _, ok := snap.Lookup(id); !ok {
			result.Errors[id] = newError(ErrDanglingReference, "variable %s not found", id)
			return result
		}
	}

	for _, id := range snap.SortedIDs() {
		if !scope.contains(id) {
			continue
		}
		value, err := ev.resolve(id)
		if err != nil {
			result.Errors[id] = err
		} else {
			result.Resolved[id] = value
		}
	}
	return result
}

// evaluator holds the transient state of one resolution pass. It is
// discarded when the pass completes.
type evaluator struct {
	graph  *Graph
	cycles map[VariableID]*ResolutionError
	values map[VariableID]string
	failed map[VariableID]*ResolutionError
}

func (e *evaluator) resolve(id VariableID) (string, *ResolutionError) {
	if value, ok := e.values[id]; ok {
		return value, nil
	}
	if err, ok := e.failed[id]; ok {
		return "", err
	}

	value, err := e.compute(id)
	if err != nil {
		e.failed[id] = err
		return "", err
	}
	e.values[id] = value
	return value, nil
}

func (e *evaluator) compute(id VariableID) (string, *ResolutionError) {
	v, ok := e.graph.snapshot.Lookup(id)
	if !ok {
		return "", newError(ErrDanglingReference, "variable %s not found", id)
	}
	if v.ParseErr != nil {
		return "", v.ParseErr
	}
	if err := e.cycles[id]; err != nil {
		return "", err
	}
	if err := e.graph.DanglingError(id); err != nil {
		return "", err
	}

	switch v.Value.Kind {
	case RawKind:
		return v.Value.Raw, nil

	case LinkedKind:
		target := *v.Value.Link
		value, err := e.resolve(target)
		if err != nil {
			return "", inheritedError(id, target, err)
		}
		return value, nil

	case ConcatenatedKind:
		var out []byte
		for _, seg := range v.Value.Segments {
			if seg.Ref == nil {
				out = append(out, seg.Literal...)
				continue
			}
			value, err := e.resolve(*seg.Ref)
			if err != nil {
				return "", inheritedError(id, *seg.Ref, err)
			}
			out = append(out, value...)
		}
		return string(out), nil

	default:
		return "", newError(ErrAmbiguousValueKind, "variable %s has unknown value kind", id)
	}
}
