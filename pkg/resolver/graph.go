package resolver

// Graph is the dependency graph of one snapshot: identity-keyed adjacency
// lists plus their transpose. It is rebuilt fresh for every resolution
// pass; construction is linear in variable and segment count.
type Graph struct {
	snapshot *Snapshot
	edges    map[VariableID][]VariableID // variable -> variables it depends on
	reverse  map[VariableID][]VariableID // variable -> variables that depend on it
	dangling map[VariableID]*ResolutionError
}

// BuildGraph extracts every reference from every variable in the snapshot
// and resolves it against the snapshot index. A reference whose target does
// not exist records a DanglingReference error on the dependent variable
// only; the rest of the graph is still built so independent variables
// resolve normally. Duplicate references collapse to a single edge.
func BuildGraph(snap *Snapshot) *Graph {
	g := &Graph{
		snapshot: snap,
		edges:    make(map[VariableID][]VariableID, snap.Len()),
		reverse:  make(map[VariableID][]VariableID, snap.Len()),
		dangling: make(map[VariableID]*ResolutionError),
	}

	for _, v := range snap.Variables() {
		if v.ParseErr != nil {
			continue
		}
		seen := make(map[VariableID]bool)
		for _, ref := range v.Value.References() {
			if seen[ref] {
				continue
			}
			seen[ref] = true

			if _, ok := snap.Lookup(ref); !ok {
				if g.dangling[v.ID] == nil {
					g.dangling[v.ID] = newError(ErrDanglingReference, "reference %s not found", ref)
				}
				continue
			}
			g.edges[v.ID] = append(g.edges[v.ID], ref)
			g.reverse[ref] = append(g.reverse[ref], v.ID)
		}
	}

	for id := range g.edges {
		sortIDs(g.edges[id])
	}
	for id := range g.reverse {
		sortIDs(g.reverse[id])
	}
	return g
}

// Dependencies returns the variables id directly depends on.
func (g *Graph) Dependencies(id VariableID) []VariableID {
	return g.edges[id]
}

// Dependents returns the variables that directly depend on id.
func (g *Graph) Dependents(id VariableID) []VariableID {
	return g.reverse[id]
}

// DanglingError returns the dangling-reference error recorded for id, if
// any of its references could not be resolved against the snapshot.
func (g *Graph) DanglingError(id VariableID) *ResolutionError {
	return g.dangling[id]
}

// TransitiveDependents walks the transpose breadth-first from id and
// returns every variable that directly or indirectly depends on it, in
// deterministic order. The target itself is not included.
func (g *Graph) TransitiveDependents(id VariableID) []VariableID {
	visited := map[VariableID]bool{id: true}
	var result []VariableID

	queue := append([]VariableID(nil), g.reverse[id]...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		result = append(result, current)
		queue = append(queue, g.reverse[current]...)
	}
	return result
}

// node colors for cycle detection
const (
	unvisited = iota
	inProgress
	done
)

// DetectCycles runs a three-color depth-first traversal over the whole
// graph and returns a CircularReference error for every variable that is a
// member of a cycle, keyed by identity. Each error carries the full cycle
// path from the start of the cycle back to itself. Variables outside the
// cyclic components are not in the returned map. Dependents of a cycle
// inherit the error during evaluation, not here.
func (g *Graph) DetectCycles() map[VariableID]*ResolutionError {
	colors := make(map[VariableID]int, g.snapshot.Len())
	errs := make(map[VariableID]*ResolutionError)
	var stack []VariableID

	var visit func(id VariableID)
	visit = func(id VariableID) {
		colors[id] = inProgress
		stack = append(stack, id)

		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case unvisited:
				visit(dep)
			case inProgress:
				// Found a back edge: the cycle is the stack suffix
				// starting at dep, closed by dep itself.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				path := append(append([]VariableID(nil), stack[start:]...), dep)
				err := cycleError(path)
				for _, member := range stack[start:] {
					if errs[member] == nil {
						errs[member] = err
					}
				}
			case done:
				// Already fully explored, no cycle possible through it.
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = done
	}

	for _, id := range g.snapshot.SortedIDs() {
		if colors[id] == unvisited {
			visit(id)
		}
	}
	return errs
}
