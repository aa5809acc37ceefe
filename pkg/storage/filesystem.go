package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/envlink/pkg/api"
)

// FileSystemStorage implements the Storage interface using the local
// filesystem. Layout: one directory per project holding project.json, a
// vars/ directory with one JSON file per variable, and an exports/
// directory with one JSON file per export record.
type FileSystemStorage struct {
	rootDir string
}

// NewFileSystemStorage creates a new filesystem-based storage
func NewFileSystemStorage(rootDir string) (*FileSystemStorage, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStorage{rootDir: rootDir}, nil
}

func (s *FileSystemStorage) projectDir(name string) string {
	return filepath.Join(s.rootDir, name)
}

func (s *FileSystemStorage) varFile(project, name string) string {
	return filepath.Join(s.projectDir(project), "vars", name+".json")
}

func (s *FileSystemStorage) exportFile(project, id string) string {
	return filepath.Join(s.projectDir(project), "exports", id+".json")
}

func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return api.ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// CreateProject implements Storage.CreateProject
func (s *FileSystemStorage) CreateProject(project *api.Project) error {
	if err := os.MkdirAll(s.projectDir(project.Name), 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	if project.ID == 0 {
		project.ID = s.nextProjectID()
	}
	return writeJSONFile(filepath.Join(s.projectDir(project.Name), "project.json"), project)
}

// nextProjectID assigns monotonically increasing IDs by scanning existing
// projects. Filesystem storage is single-writer by design.
func (s *FileSystemStorage) nextProjectID() int64 {
	projects, err := s.ListProjects()
	if err != nil {
		return 1
	}
	var max int64
	for _, p := range projects {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1
}

// GetProject implements Storage.GetProject
func (s *FileSystemStorage) GetProject(name string) (*api.Project, error) {
	var project api.Project
	if err := readJSONFile(filepath.Join(s.projectDir(name), "project.json"), &project); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("project %q: %w", name, api.ErrNotFound)
		}
		return nil, err
	}
	return &project, nil
}

// ListProjects implements Storage.ListProjects
func (s *FileSystemStorage) ListProjects() ([]*api.Project, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	var projects []*api.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		project, err := s.GetProject(entry.Name())
		if err != nil {
			// A directory without project.json is not a project.
			if errors.Is(err, api.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get project %s: %w", entry.Name(), err)
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// UpdateProject implements Storage.UpdateProject
func (s *FileSystemStorage) UpdateProject(project *api.Project) error {
	if _, err := s.GetProject(project.Name); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(s.projectDir(project.Name), "project.json"), project)
}

// DeleteProject implements Storage.DeleteProject
func (s *FileSystemStorage) DeleteProject(name string) error {
	if _, err := s.GetProject(name); err != nil {
		return err
	}
	if err := os.RemoveAll(s.projectDir(name)); err != nil {
		return fmt.Errorf("failed to delete project directory: %w", err)
	}
	return nil
}

// CreateEnvVar implements Storage.CreateEnvVar
func (s *FileSystemStorage) CreateEnvVar(v *api.EnvVar) error {
	if _, err := s.GetProject(v.Project); err != nil {
		return err
	}
	if v.ID == 0 {
		v.ID = s.nextVarID()
	}
	return writeJSONFile(s.varFile(v.Project, v.Name), v)
}

func (s *FileSystemStorage) nextVarID() int64 {
	all, err := s.ListAllEnvVars()
	if err != nil {
		return 1
	}
	var max int64
	for _, v := range all {
		if v.ID > max {
			max = v.ID
		}
	}
	return max + 1
}

// GetEnvVar implements Storage.GetEnvVar
func (s *FileSystemStorage) GetEnvVar(project, name string) (*api.EnvVar, error) {
	var v api.EnvVar
	if err := readJSONFile(s.varFile(project, name), &v); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("variable %s:%s: %w", project, name, api.ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// ListEnvVars implements Storage.ListEnvVars
func (s *FileSystemStorage) ListEnvVars(project string) ([]*api.EnvVar, error) {
	if _, err := s.GetProject(project); err != nil {
		return nil, err
	}

	varsDir := filepath.Join(s.projectDir(project), "vars")
	entries, err := os.ReadDir(varsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read vars directory: %w", err)
	}

	var envVars []*api.EnvVar
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		v, err := s.GetEnvVar(project, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get variable %s: %w", name, err)
		}
		envVars = append(envVars, v)
	}
	return envVars, nil
}

// UpdateEnvVar implements Storage.UpdateEnvVar
func (s *FileSystemStorage) UpdateEnvVar(v *api.EnvVar) error {
	if _, err := s.GetEnvVar(v.Project, v.Name); err != nil {
		return err
	}
	return writeJSONFile(s.varFile(v.Project, v.Name), v)
}

// DeleteEnvVar implements Storage.DeleteEnvVar
func (s *FileSystemStorage) DeleteEnvVar(project, name string) error {
	if _, err := s.GetEnvVar(project, name); err != nil {
		return err
	}
	if err := os.Remove(s.varFile(project, name)); err != nil {
		return fmt.Errorf("failed to delete variable file: %w", err)
	}
	return nil
}

// ListAllEnvVars implements Storage.ListAllEnvVars
func (s *FileSystemStorage) ListAllEnvVars() ([]*api.EnvVar, error) {
	projects, err := s.ListProjects()
	if err != nil {
		return nil, err
	}

	var all []*api.EnvVar
	for _, project := range projects {
		envVars, err := s.ListEnvVars(project.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, envVars...)
	}
	return all, nil
}

// CreateExport implements Storage.CreateExport
func (s *FileSystemStorage) CreateExport(export *api.EnvExport) error {
	if _, err := s.GetProject(export.Project); err != nil {
		return err
	}
	return writeJSONFile(s.exportFile(export.Project, export.ID), export)
}

// GetExport implements Storage.GetExport
func (s *FileSystemStorage) GetExport(id string) (*api.EnvExport, error) {
	projects, err := s.ListProjects()
	if err != nil {
		return nil, err
	}

	for _, project := range projects {
		var export api.EnvExport
		err := readJSONFile(s.exportFile(project.Name, id), &export)
		if err == nil {
			return &export, nil
		}
		if !errors.Is(err, api.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("export %q: %w", id, api.ErrNotFound)
}

// ListExports implements Storage.ListExports. An empty project lists
// exports across every project.
func (s *FileSystemStorage) ListExports(project string) ([]*api.EnvExport, error) {
	var projectNames []string
	if project != "" {
		if _, err := s.GetProject(project); err != nil {
			return nil, err
		}
		projectNames = []string{project}
	} else {
		projects, err := s.ListProjects()
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			projectNames = append(projectNames, p.Name)
		}
	}

	var exports []*api.EnvExport
	for _, name := range projectNames {
		exportsDir := filepath.Join(s.projectDir(name), "exports")
		entries, err := os.ReadDir(exportsDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read exports directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			var export api.EnvExport
			if err := readJSONFile(filepath.Join(exportsDir, entry.Name()), &export); err != nil {
				return nil, err
			}
			exports = append(exports, &export)
		}
	}
	return exports, nil
}

// DeleteExport implements Storage.DeleteExport
func (s *FileSystemStorage) DeleteExport(id string) error {
	export, err := s.GetExport(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.exportFile(export.Project, id)); err != nil {
		return fmt.Errorf("failed to delete export file: %w", err)
	}
	return nil
}
