package resolver

import "sort"

// VariableID identifies a variable by owning project and name.
type VariableID struct {
	Project string `json:"project"`
	Name    string `json:"name"`
}

// String returns the canonical PROJECT:VAR form.
func (id VariableID) String() string {
	return id.Project + ":" + id.Name
}

// Kind discriminates the three value kinds a variable can hold.
type Kind int

const (
	// RawKind is a literal string value with no dependencies.
	RawKind Kind = iota
	// LinkedKind is a single reference to another variable.
	LinkedKind
	// ConcatenatedKind is an ordered list of literal and reference segments.
	ConcatenatedKind
)

func (k Kind) String() string {
	switch k {
	case RawKind:
		return "raw"
	case LinkedKind:
		return "linked"
	case ConcatenatedKind:
		return "concatenated"
	default:
		return "unknown"
	}
}

// Segment is one element of a concatenation: either a literal string or a
// reference to another variable. Exactly one of the two fields is set.
type Segment struct {
	Literal string      `json:"literal,omitempty"`
	Ref     *VariableID `json:"ref,omitempty"`
}

// LiteralSegment builds a literal segment.
func LiteralSegment(text string) Segment {
	return Segment{Literal: text}
}

// RefSegment builds a reference segment.
func RefSegment(id VariableID) Segment {
	return Segment{Ref: &id}
}

// ValueKind is the parsed value of a variable. Kind selects which of the
// remaining fields is meaningful.
type ValueKind struct {
	Kind     Kind        `json:"kind"`
	Raw      string      `json:"raw,omitempty"`
	Link     *VariableID `json:"link,omitempty"`
	Segments []Segment   `json:"segments,omitempty"`
}

// References returns every reference the value depends on, in segment
// order. Duplicates are preserved.
func (v ValueKind) References() []VariableID {
	switch v.Kind {
	case LinkedKind:
		if v.Link == nil {
			return nil
		}
		return []VariableID{*v.Link}
	case ConcatenatedKind:
		refs := make([]VariableID, 0, len(v.Segments))
		for _, seg := range v.Segments {
			if seg.Ref != nil {
				refs = append(refs, *seg.Ref)
			}
		}
		return refs
	default:
		return nil
	}
}

// Variable is one entry of a snapshot. ParseErr is set when the stored
// form of the value could not be parsed; such variables fail resolution
// with that error and their dependents inherit it.
type Variable struct {
	ID       VariableID
	Value    ValueKind
	ParseErr *ResolutionError
}

// RawVariable builds a raw variable, convenient for snapshot construction.
func RawVariable(project, name, value string) *Variable {
	return &Variable{
		ID:    VariableID{Project: project, Name: name},
		Value: ValueKind{Kind: RawKind, Raw: value},
	}
}

// LinkedVariable builds a linked variable.
func LinkedVariable(project, name string, target VariableID) *Variable {
	return &Variable{
		ID:    VariableID{Project: project, Name: name},
		Value: ValueKind{Kind: LinkedKind, Link: &target},
	}
}

// ConcatenatedVariable builds a concatenated variable from segments.
func ConcatenatedVariable(project, name string, segments []Segment) *Variable {
	return &Variable{
		ID:    VariableID{Project: project, Name: name},
		Value: ValueKind{Kind: ConcatenatedKind, Segments: segments},
	}
}

// Snapshot is a read-only view of all variables across all projects for
// the duration of one resolution pass.
type Snapshot struct {
	vars  []*Variable
	index map[VariableID]*Variable
}

// NewSnapshot builds a snapshot from a variable list. Later entries with a
// duplicate identity overwrite earlier ones in the lookup index.
func NewSnapshot(vars []*Variable) *Snapshot {
	index := make(map[VariableID]*Variable, len(vars))
	for _, v := range vars {
		index[v.ID] = v
	}
	return &Snapshot{vars: vars, index: index}
}

// Lookup returns the variable with the given identity, if present.
func (s *Snapshot) Lookup(id VariableID) (*Variable, bool) {
	v, ok := s.index[id]
	return v, ok
}

// Variables returns all variables in the snapshot.
func (s *Snapshot) Variables() []*Variable {
	return s.vars
}

// Len returns the number of variables in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.vars)
}

// SortedIDs returns every identity in the snapshot ordered by project then
// name, for deterministic iteration.
func (s *Snapshot) SortedIDs() []VariableID {
	ids := make([]VariableID, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []VariableID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Project != ids[j].Project {
			return ids[i].Project < ids[j].Project
		}
		return ids[i].Name < ids[j].Name
	})
}
