package postgres

// The aws-sdk-go-v2 s3 client does not expose easily mockable
// interfaces, so unit tests cover key construction, payload shape, and
// error classification. Real S3 operations run against MinIO in
// s3_integration_test.go behind the integration build tag.

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/envlink/pkg/api"
)

func TestArchiveKey(t *testing.T) {
	c := &S3Client{bucket: "envlink-archives", prefix: "envlink"}

	assert.Equal(t, "envlink/exports/webapp/exp-1.json", c.archiveKey("webapp", "exp-1"))
}

func TestArchiveKey_CustomPrefix(t *testing.T) {
	c := &S3Client{bucket: "shared", prefix: "team/envlink/prod"}

	assert.Equal(t, "team/envlink/prod/exports/api/exp-2.json", c.archiveKey("api", "exp-2"))
}

func TestExportArchivePayload(t *testing.T) {
	exportedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	export := &api.EnvExport{
		ID:             "exp-1",
		Project:        "webapp",
		ExportPath:     "/srv/webapp/.env",
		ResolvedValues: map[string]string{"API_URL": "https://api.example.com"},
		ExportHash:     "abc123",
		ExportedAt:     exportedAt,
		GitBranch:      "main",
	}

	payload, err := json.Marshal(exportArchive{
		ExportID:       export.ID,
		Project:        export.Project,
		ExportPath:     export.ExportPath,
		ResolvedValues: export.ResolvedValues,
		ExportHash:     export.ExportHash,
		ExportedAt:     export.ExportedAt,
		GitBranch:      export.GitBranch,
	})
	require.NoError(t, err)

	var got exportArchive
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "exp-1", got.ExportID)
	assert.Equal(t, export.ResolvedValues, got.ResolvedValues)
	assert.Equal(t, exportedAt, got.ExportedAt)
	assert.Empty(t, got.GitCommitHash, "omitted git fields stay empty")
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", errors.New("operation error S3: HeadObject, https response error StatusCode: 404, NotFound"), true},
		{"no such key", errors.New("NoSuchKey: The specified key does not exist"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}

func TestIsBucketAlreadyExistsError(t *testing.T) {
	assert.True(t, isBucketAlreadyExistsError(errors.New("BucketAlreadyOwnedByYou: you own it")))
	assert.True(t, isBucketAlreadyExistsError(errors.New("BucketAlreadyExists")))
	assert.False(t, isBucketAlreadyExistsError(errors.New("AccessDenied")))
	assert.False(t, isBucketAlreadyExistsError(nil))
}
