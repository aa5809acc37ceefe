package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// DefaultFileName is the canonical workspace file name
const DefaultFileName = "envlink.yaml"

// candidateFileNames are checked in order when loading from a directory
var candidateFileNames = []string{"envlink.yaml", "envlink.yml", ".envlink.yaml", ".envlink.yml"}

// Workspace is a file-based variable catalog for use without a server.
// It declares the same stored forms the server persists: a raw literal,
// a link to another variable, or a concatenation expression.
type Workspace struct {
	Version  string    `yaml:"version"`
	Projects []Project `yaml:"projects"`
}

// Project declares one project and its variables
type Project struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Variables   []Variable `yaml:"variables"`
}

// Variable declares one variable. Exactly one of Value, Link, Concat
// must be set.
type Variable struct {
	Name        string  `yaml:"name"`
	Value       *string `yaml:"value,omitempty"`
	Link        string  `yaml:"link,omitempty"`
	Concat      string  `yaml:"concat,omitempty"`
	Description string  `yaml:"description,omitempty"`
}

// DefaultWorkspace returns an empty v1 workspace
func DefaultWorkspace() *Workspace {
	return &Workspace{
		Version:  "v1",
		Projects: []Project{},
	}
}

// Load loads a workspace from a file
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ws Workspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace file %s: %w", path, err)
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace file %s: %w", path, err)
	}
	return &ws, nil
}

// LoadFromDir searches a directory for a workspace file, returning an
// empty default workspace when none exists.
func LoadFromDir(dir string) (*Workspace, error) {
	for _, name := range candidateFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultWorkspace(), nil
}

// Save writes the workspace to a file
func Save(ws *Workspace, path string) error {
	data, err := yaml.Marshal(ws)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks project/variable uniqueness and that every variable
// declares exactly one stored form.
func (w *Workspace) Validate() error {
	seenProjects := make(map[string]bool)
	for _, p := range w.Projects {
		if p.Name == "" {
			return fmt.Errorf("project with empty name")
		}
		if seenProjects[p.Name] {
			return fmt.Errorf("duplicate project %q", p.Name)
		}
		seenProjects[p.Name] = true

		seenVars := make(map[string]bool)
		for _, v := range p.Variables {
			if v.Name == "" {
				return fmt.Errorf("project %q: variable with empty name", p.Name)
			}
			if seenVars[v.Name] {
				return fmt.Errorf("project %q: duplicate variable %q", p.Name, v.Name)
			}
			seenVars[v.Name] = true

			forms := 0
			if v.Value != nil {
				forms++
			}
			if v.Link != "" {
				forms++
			}
			if v.Concat != "" {
				forms++
			}
			if forms != 1 {
				return fmt.Errorf("project %q: variable %q must declare exactly one of value, link, concat", p.Name, v.Name)
			}
		}
	}
	return nil
}

// ProjectNames returns the declared project names in file order
func (w *Workspace) ProjectNames() []string {
	names := make([]string, 0, len(w.Projects))
	for _, p := range w.Projects {
		names = append(names, p.Name)
	}
	return names
}

// EnvVars converts the workspace into the storage row form
func (w *Workspace) EnvVars() []*api.EnvVar {
	var vars []*api.EnvVar
	for _, p := range w.Projects {
		for _, v := range p.Variables {
			ev := &api.EnvVar{
				Project:     p.Name,
				Name:        v.Name,
				Description: v.Description,
			}
			switch {
			case v.Value != nil:
				ev.RawValue = v.Value
			case v.Link != "":
				link := v.Link
				ev.LinkedTo = &link
			case v.Concat != "":
				concat := v.Concat
				ev.ConcatParts = &concat
			}
			vars = append(vars, ev)
		}
	}
	return vars
}

// ToSnapshot parses the workspace into a resolver snapshot. Malformed
// variables are carried into the snapshot with their parse error, the
// same way server-side resolution treats bad rows.
func (w *Workspace) ToSnapshot() *resolver.Snapshot {
	return api.SnapshotFromEnvVars(w.EnvVars())
}
