// File: internal/infra/project/store.go
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
	filepathx "github.com/yargevad/filepathx"

	"dream2design/internal/domain"
	"dream2design/internal/domain/model"
	"dream2design/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.ProjectStore = (*FileStore)(nil)

// entryNames are tried, in order, when a job has no stored preview.
var entryNames = []string{"index.html", "main.html", "app.html"}

// FileStore keeps every job's files under <root>/<jobID>. The filesystem is
// the source of truth: nothing is cached between calls.
type FileStore struct {
	root string
	log  *zerolog.Logger
}

func NewFileStore(root string, log *zerolog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve jobs dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	return &FileStore{root: abs, log: log}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) jobDir(jobID string) (string, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return "", domain.ErrInvalidPath
	}
	return filepath.Join(s.root, jobID), nil
}

// resolve maps a relative project path to an absolute path inside the job
// directory, rejecting anything that would land outside it.
func (s *FileStore) resolve(jobID, rel string) (string, string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", "", err
	}
	rel = strings.ReplaceAll(strings.TrimSpace(rel), "\\", "/")
	if rel == "" || strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", "", fmt.Errorf("%q: %w", rel, domain.ErrInvalidPath)
	}
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", fmt.Errorf("%q: %w", rel, domain.ErrInvalidPath)
	}
	abs := filepath.Join(dir, filepath.FromSlash(clean))
	if r, err := filepath.Rel(dir, abs); err != nil || strings.HasPrefix(r, "..") {
		return "", "", fmt.Errorf("%q: %w", rel, domain.ErrInvalidPath)
	}
	return abs, clean, nil
}

func (s *FileStore) EnsureDir(ctx context.Context, jobID string) error {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *FileStore) Exists(ctx context.Context, jobID string) bool {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return false
	}
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

// WriteFiles writes each file in order and stops at the first failure. The
// results of the files written before the failure are still returned.
func (s *FileStore) WriteFiles(ctx context.Context, jobID string, files []model.FileEdit) ([]repository.WriteResult, error) {
	out := make([]repository.WriteResult, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.WriteFile(ctx, jobID, f.Path, f.Content)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *FileStore) WriteFile(ctx context.Context, jobID, rel, content string) (repository.WriteResult, error) {
	abs, clean, err := s.resolve(jobID, rel)
	if err != nil {
		return repository.WriteResult{}, err
	}
	res := repository.WriteResult{Path: clean}

	before, err := os.ReadFile(abs)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		res.Created = true
	default:
		return res, fmt.Errorf("read %s: %w", clean, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return res, fmt.Errorf("mkdir for %s: %w", clean, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return res, fmt.Errorf("write %s: %w", clean, err)
	}
	res.Added, res.Removed = lineDelta(string(before), content)

	s.log.Debug().Str("job_id", jobID).Str("path", clean).Bool("created", res.Created).
		Int("added", res.Added).Int("removed", res.Removed).Msg("file written")
	return res, nil
}

// WritePreview replaces the preview document through a rename so readers see
// either the old or the new document, never a partial one.
func (s *FileStore) WritePreview(ctx context.Context, jobID, html string) error {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.tmp")
	if err != nil {
		return fmt.Errorf("create preview temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(html); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close preview: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, model.PreviewFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace preview: %w", err)
	}
	return nil
}

// ListFiles walks the job directory and returns every regular file as a
// slash-separated relative path, in lexical order.
func (s *FileStore) ListFiles(ctx context.Context, jobID string) ([]string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return nil, err
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, domain.ErrNotFound
	}

	var out []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".preview-") && strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", jobID, err)
	}
	return out, nil
}

func (s *FileStore) ProjectFiles(ctx context.Context, jobID string) ([]string, error) {
	all, err := s.ListFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, p := range all {
		if !model.IsArtifact(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Tree nests the project files by path segment; leaves are the string "file".
func (s *FileStore) Tree(ctx context.Context, jobID string) (repository.FileTree, error) {
	files, err := s.ProjectFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	tree := repository.FileTree{}
	for _, f := range files {
		node := tree
		parts := strings.Split(f, "/")
		for i, part := range parts {
			if i == len(parts)-1 {
				node[part] = "file"
				break
			}
			child, ok := node[part].(repository.FileTree)
			if !ok {
				child = repository.FileTree{}
				node[part] = child
			}
			node = child
		}
	}
	return tree, nil
}

func (s *FileStore) ReadFile(ctx context.Context, jobID, rel string) (string, error) {
	abs, _, err := s.resolve(jobID, rel)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isDirErr(abs) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return string(b), nil
}

// Preview returns the stored preview, else the shallowest conventional entry
// page found anywhere in the project.
func (s *FileStore) Preview(ctx context.Context, jobID string) ([]byte, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return nil, err
	}
	if b, err := os.ReadFile(filepath.Join(dir, model.PreviewFile)); err == nil {
		return b, nil
	}
	if !s.Exists(ctx, jobID) {
		return nil, domain.ErrNotFound
	}

	for _, name := range entryNames {
		matches, err := filepathx.Glob(filepath.Join(dir, "**", name))
		if err != nil || len(matches) == 0 {
			continue
		}
		for i := range matches {
			matches[i] = filepath.Clean(matches[i])
		}
		sort.SliceStable(matches, func(i, j int) bool {
			di := strings.Count(matches[i], string(filepath.Separator))
			dj := strings.Count(matches[j], string(filepath.Separator))
			if di != dj {
				return di < dj
			}
			return matches[i] < matches[j]
		})
		for _, m := range matches {
			if b, err := os.ReadFile(m); err == nil {
				return b, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

type manifestDoc struct {
	Files []string `json:"files"`
}

// BuildManifest rewrites the manifest from a fresh walk and returns its entries.
func (s *FileStore) BuildManifest(ctx context.Context, jobID string) ([]string, error) {
	files, err := s.ProjectFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(manifestDoc{Files: files}, "", "  ")
	if err != nil {
		return nil, err
	}
	dir, _ := s.jobDir(jobID)
	if err := os.WriteFile(filepath.Join(dir, model.ManifestFile), b, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return files, nil
}

func (s *FileStore) ReadManifest(ctx context.Context, jobID string) ([]string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(dir, model.ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var doc manifestDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return doc.Files, nil
}

func isDirErr(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// lineDelta counts lines added and removed between two file bodies.
func lineDelta(before, after string) (added, removed int) {
	if before == after {
		return 0, 0
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
