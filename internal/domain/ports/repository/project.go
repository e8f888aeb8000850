package repository

import (
	"context"

	"dream2design/internal/domain/model"
)

// WriteResult describes one file written into a project.
type WriteResult struct {
	Path    string
	Created bool
	Added   int // lines added
	Removed int // lines removed
}

// FileTree maps a path segment to either "file" or a nested FileTree.
type FileTree map[string]any

// ProjectStore materializes a job's files on disk under a job-scoped directory.
type ProjectStore interface {
	EnsureDir(ctx context.Context, jobID string) error
	Exists(ctx context.Context, jobID string) bool

	WriteFiles(ctx context.Context, jobID string, files []model.FileEdit) ([]WriteResult, error)
	WriteFile(ctx context.Context, jobID, path, content string) (WriteResult, error)
	WritePreview(ctx context.Context, jobID, html string) error

	// ListFiles walks the job directory afresh on every call.
	ListFiles(ctx context.Context, jobID string) ([]string, error)
	// ProjectFiles is ListFiles without the manifest and preview artifacts.
	ProjectFiles(ctx context.Context, jobID string) ([]string, error)
	Tree(ctx context.Context, jobID string) (FileTree, error)
	ReadFile(ctx context.Context, jobID, path string) (string, error)
	Preview(ctx context.Context, jobID string) ([]byte, error)

	BuildManifest(ctx context.Context, jobID string) ([]string, error)
	ReadManifest(ctx context.Context, jobID string) ([]string, error)
}
