package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by storage backends when an entity does not exist.
var ErrNotFound = errors.New("not found")

// Project represents a named group of environment variables
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnvVar represents a single environment variable in a project. Exactly one
// of RawValue, LinkedTo, ConcatParts is non-nil; storage backends persist
// the pointers as nullable columns.
type EnvVar struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Project     string    `json:"project"`
	Name        string    `json:"name"`
	RawValue    *string   `json:"raw_value,omitempty"`
	LinkedTo    *string   `json:"linked_to,omitempty"`
	ConcatParts *string   `json:"concat_parts,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnvExport is a capture record of one project resolution: the resolved
// values at a moment in time plus where they were written and, when the
// destination was a git checkout, which commit it was on. Git metadata is
// caller-supplied; the server never runs git.
type EnvExport struct {
	ID             string            `json:"id"`
	ProjectID      int64             `json:"project_id"`
	Project        string            `json:"project"`
	ExportPath     string            `json:"export_path"`
	ResolvedValues map[string]string `json:"resolved_values"`
	ExportHash     string            `json:"export_hash"`
	ArchiveKey     string            `json:"archive_key,omitempty"`
	ExportedAt     time.Time         `json:"exported_at"`
	GitRepoPath    string            `json:"git_repo_path,omitempty"`
	GitBranch      string            `json:"git_branch,omitempty"`
	GitCommitHash  string            `json:"git_commit_hash,omitempty"`
	GitRemoteURL   string            `json:"git_remote_url,omitempty"`
	IsGitRepo      bool              `json:"is_git_repo"`
}

// HashResolvedValues computes the canonical hash of a resolved value set:
// hex SHA256 of the JSON encoding, which serializes map keys in sorted
// order. Drift detection compares this against the stored ExportHash.
func HashResolvedValues(values map[string]string) string {
	data, err := json.Marshal(values)
	if err != nil {
		// A map[string]string cannot fail to marshal.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Storage interface defines the methods required for storing and retrieving
// projects, variables, and export records
type Storage interface {
	// Project operations
	CreateProject(project *Project) error
	GetProject(name string) (*Project, error)
	ListProjects() ([]*Project, error)
	UpdateProject(project *Project) error
	DeleteProject(name string) error

	// Variable operations
	CreateEnvVar(v *EnvVar) error
	GetEnvVar(project, name string) (*EnvVar, error)
	ListEnvVars(project string) ([]*EnvVar, error)
	UpdateEnvVar(v *EnvVar) error
	DeleteEnvVar(project, name string) error

	// ListAllEnvVars returns every variable across every project: the
	// snapshot read that resolution passes are built from.
	ListAllEnvVars() ([]*EnvVar, error)

	// Export operations
	CreateExport(export *EnvExport) error
	GetExport(id string) (*EnvExport, error)
	ListExports(project string) ([]*EnvExport, error)
	DeleteExport(id string) error
}
