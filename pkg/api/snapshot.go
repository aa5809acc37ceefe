package api

import (
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// LoadSnapshot reads every variable from storage and parses it into a
// resolver snapshot. Variables whose stored form does not parse are kept in
// the snapshot carrying their parse error, so resolution reports them
// per-variable instead of failing the whole pass.
func LoadSnapshot(storage Storage) (*resolver.Snapshot, error) {
	envVars, err := storage.ListAllEnvVars()
	if err != nil {
		return nil, err
	}
	return SnapshotFromEnvVars(envVars), nil
}

// SnapshotFromEnvVars converts stored variable rows into a resolver
// snapshot without touching storage.
func SnapshotFromEnvVars(envVars []*EnvVar) *resolver.Snapshot {
	vars := make([]*resolver.Variable, 0, len(envVars))
	for _, ev := range envVars {
		vars = append(vars, parseEnvVar(ev))
	}
	return resolver.NewSnapshot(vars)
}

func parseEnvVar(ev *EnvVar) *resolver.Variable {
	id := resolver.VariableID{Project: ev.Project, Name: ev.Name}
	value, err := resolver.ParseValueKind(resolver.StoredRecord{
		RawValue:    ev.RawValue,
		LinkedTo:    ev.LinkedTo,
		ConcatParts: ev.ConcatParts,
	})
	if err != nil {
		return &resolver.Variable{ID: id, ParseErr: err.(*resolver.ResolutionError)}
	}
	return &resolver.Variable{ID: id, Value: value}
}
