package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/envlink/pkg/api"
)

func strPtr(s string) *string { return &s }

func newTestStorage(t *testing.T) *FileSystemStorage {
	t.Helper()
	storage, err := NewFileSystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return storage
}

func seedProject(t *testing.T, storage *FileSystemStorage, name string) *api.Project {
	t.Helper()
	project := &api.Project{Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := storage.CreateProject(project); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return project
}

func TestNewFileSystemStorage(t *testing.T) {
	t.Run("creates storage with new directory", func(t *testing.T) {
		rootDir := filepath.Join(t.TempDir(), "test-storage")

		storage, err := NewFileSystemStorage(rootDir)
		if err != nil {
			t.Fatalf("Failed to create storage: %v", err)
		}
		if storage == nil {
			t.Fatal("Storage should not be nil")
		}
		if _, err := os.Stat(rootDir); os.IsNotExist(err) {
			t.Error("Root directory should have been created")
		}
	})
}

func TestFileSystemStorage_Projects(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		storage := newTestStorage(t)
		created := seedProject(t, storage, "shared")
		if created.ID == 0 {
			t.Error("Expected an assigned ID")
		}

		got, err := storage.GetProject("shared")
		if err != nil {
			t.Fatalf("Failed to get project: %v", err)
		}
		if got.Name != "shared" || got.ID != created.ID {
			t.Errorf("Unexpected project: %+v", got)
		}
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		storage := newTestStorage(t)
		_, err := storage.GetProject("ghost")
		if !errors.Is(err, api.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		storage := newTestStorage(t)
		seedProject(t, storage, "a")
		seedProject(t, storage, "b")

		projects, err := storage.ListProjects()
		if err != nil {
			t.Fatalf("Failed to list projects: %v", err)
		}
		if len(projects) != 2 {
			t.Errorf("Expected 2 projects, got %d", len(projects))
		}
	})

	t.Run("ids are unique", func(t *testing.T) {
		storage := newTestStorage(t)
		a := seedProject(t, storage, "a")
		b := seedProject(t, storage, "b")
		if a.ID == b.ID {
			t.Errorf("Expected distinct IDs, both got %d", a.ID)
		}
	})

	t.Run("update", func(t *testing.T) {
		storage := newTestStorage(t)
		project := seedProject(t, storage, "shared")
		project.Description = "updated"
		if err := storage.UpdateProject(project); err != nil {
			t.Fatalf("Failed to update project: %v", err)
		}

		got, err := storage.GetProject("shared")
		if err != nil {
			t.Fatalf("Failed to get project: %v", err)
		}
		if got.Description != "updated" {
			t.Errorf("Expected updated description, got %q", got.Description)
		}
	})

	t.Run("delete removes variables too", func(t *testing.T) {
		storage := newTestStorage(t)
		project := seedProject(t, storage, "shared")
		v := &api.EnvVar{ProjectID: project.ID, Project: "shared", Name: "DB", RawValue: strPtr("url")}
		if err := storage.CreateEnvVar(v); err != nil {
			t.Fatalf("Failed to create variable: %v", err)
		}

		if err := storage.DeleteProject("shared"); err != nil {
			t.Fatalf("Failed to delete project: %v", err)
		}
		if _, err := storage.GetEnvVar("shared", "DB"); !errors.Is(err, api.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after project delete, got %v", err)
		}
	})
}

func TestFileSystemStorage_EnvVars(t *testing.T) {
	t.Run("create get update delete", func(t *testing.T) {
		storage := newTestStorage(t)
		project := seedProject(t, storage, "shared")

		v := &api.EnvVar{ProjectID: project.ID, Project: "shared", Name: "DB", RawValue: strPtr("url")}
		if err := storage.CreateEnvVar(v); err != nil {
			t.Fatalf("Failed to create variable: %v", err)
		}
		if v.ID == 0 {
			t.Error("Expected an assigned ID")
		}

		got, err := storage.GetEnvVar("shared", "DB")
		if err != nil {
			t.Fatalf("Failed to get variable: %v", err)
		}
		if got.RawValue == nil || *got.RawValue != "url" {
			t.Errorf("Unexpected variable: %+v", got)
		}

		got.RawValue = nil
		got.LinkedTo = strPtr("other:VAR")
		if err := storage.UpdateEnvVar(got); err != nil {
			t.Fatalf("Failed to update variable: %v", err)
		}
		updated, err := storage.GetEnvVar("shared", "DB")
		if err != nil {
			t.Fatalf("Failed to get variable: %v", err)
		}
		if updated.RawValue != nil || updated.LinkedTo == nil || *updated.LinkedTo != "other:VAR" {
			t.Errorf("Update not persisted: %+v", updated)
		}

		if err := storage.DeleteEnvVar("shared", "DB"); err != nil {
			t.Fatalf("Failed to delete variable: %v", err)
		}
		if _, err := storage.GetEnvVar("shared", "DB"); !errors.Is(err, api.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create in missing project fails", func(t *testing.T) {
		storage := newTestStorage(t)
		v := &api.EnvVar{Project: "ghost", Name: "X", RawValue: strPtr("v")}
		if err := storage.CreateEnvVar(v); !errors.Is(err, api.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list all spans projects", func(t *testing.T) {
		storage := newTestStorage(t)
		a := seedProject(t, storage, "a")
		b := seedProject(t, storage, "b")
		storage.CreateEnvVar(&api.EnvVar{ProjectID: a.ID, Project: "a", Name: "X", RawValue: strPtr("1")})
		storage.CreateEnvVar(&api.EnvVar{ProjectID: b.ID, Project: "b", Name: "Y", RawValue: strPtr("2")})

		all, err := storage.ListAllEnvVars()
		if err != nil {
			t.Fatalf("Failed to list all variables: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("Expected 2 variables, got %d", len(all))
		}
	})

	t.Run("list empty project", func(t *testing.T) {
		storage := newTestStorage(t)
		seedProject(t, storage, "empty")
		envVars, err := storage.ListEnvVars("empty")
		if err != nil {
			t.Fatalf("Failed to list variables: %v", err)
		}
		if len(envVars) != 0 {
			t.Errorf("Expected no variables, got %d", len(envVars))
		}
	})
}

func TestFileSystemStorage_Exports(t *testing.T) {
	t.Run("create get list delete", func(t *testing.T) {
		storage := newTestStorage(t)
		project := seedProject(t, storage, "shared")

		export := &api.EnvExport{
			ID:             "exp-1",
			ProjectID:      project.ID,
			Project:        "shared",
			ExportPath:     "/deploy/.env",
			ResolvedValues: map[string]string{"DB": "url"},
			ExportHash:     api.HashResolvedValues(map[string]string{"DB": "url"}),
			ExportedAt:     time.Now(),
		}
		if err := storage.CreateExport(export); err != nil {
			t.Fatalf("Failed to create export: %v", err)
		}

		got, err := storage.GetExport("exp-1")
		if err != nil {
			t.Fatalf("Failed to get export: %v", err)
		}
		if got.ExportHash != export.ExportHash || got.ResolvedValues["DB"] != "url" {
			t.Errorf("Unexpected export: %+v", got)
		}

		exports, err := storage.ListExports("shared")
		if err != nil {
			t.Fatalf("Failed to list exports: %v", err)
		}
		if len(exports) != 1 {
			t.Errorf("Expected 1 export, got %d", len(exports))
		}

		all, err := storage.ListExports("")
		if err != nil {
			t.Fatalf("Failed to list all exports: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("Expected 1 export across all projects, got %d", len(all))
		}

		if err := storage.DeleteExport("exp-1"); err != nil {
			t.Fatalf("Failed to delete export: %v", err)
		}
		if _, err := storage.GetExport("exp-1"); !errors.Is(err, api.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
