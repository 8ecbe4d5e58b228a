package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-core/internal/domain"
)

func TestRemoveUploadDeletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte("First Name\nAda\n"), 0o600))

	w := &Worker{}
	w.removeUpload(&domain.ImportJob{JobID: "job-1", FilePath: path})

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "upload must be gone after removal")
}

func TestRemoveUploadToleratesMissingFile(t *testing.T) {
	w := &Worker{}

	// Cancelled jobs can race the completion path; a second removal of the
	// same file must be a no-op.
	job := &domain.ImportJob{JobID: "job-2", FilePath: filepath.Join(t.TempDir(), "gone.csv")}
	w.removeUpload(job)
	w.removeUpload(job)

	w.removeUpload(&domain.ImportJob{JobID: "job-3"})
}
