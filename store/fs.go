package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var _ Client = (*FS)(nil)

// FS is a directory-backed store client. It is used for local development
// and for CI setups that publish to a mounted volume; a sync job mirrors
// the directory to the real object store out of band.
type FS struct {
	root    string
	baseURL string
}

// NewFS creates a filesystem store rooted at dir. baseURL is prepended to
// keys when a remote reference is needed (logo uploads).
func NewFS(dir, baseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create store root %s", dir)
	}
	return &FS{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FS) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Exists implements Client.
func (s *FS) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", key)
	}
	return true, nil
}

// ReadJSON implements Client.
func (s *FS) ReadJSON(_ context.Context, key string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", key)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, errors.Wrapf(err, "failed to parse %s", key)
	}
	return true, nil
}

// WriteJSON implements Client. Tags are persisted as a metadata sidecar
// next to the object, mirroring what the object store keeps natively.
func (s *FS) WriteJSON(_ context.Context, key string, v any, tags map[string]string) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create parent of %s", key)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	if len(tags) > 0 {
		meta, err := json.Marshal(tags)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal tags for %s", key)
		}
		if err := os.WriteFile(path+".tags", meta, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write tags for %s", key)
		}
	}
	return nil
}

// UploadLogo implements Client.
func (s *FS) UploadLogo(_ context.Context, localPath, key string) (string, error) {
	if err := s.copyFile(localPath, key); err != nil {
		return "", err
	}
	if s.baseURL == "" {
		return key, nil
	}
	return s.baseURL + "/" + key, nil
}

// UploadPackages implements Client.
func (s *FS) UploadPackages(ctx context.Context, localDir, prefix string) error {
	return s.uploadDir(ctx, localDir, prefix)
}

// UploadTestFiles implements Client.
func (s *FS) UploadTestFiles(ctx context.Context, localDir, prefix string) error {
	return s.uploadDir(ctx, localDir, prefix)
}

func (s *FS) uploadDir(ctx context.Context, localDir, prefix string) error {
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		return s.copyFile(path, prefix+"/"+filepath.ToSlash(rel))
	})
}

func (s *FS) copyFile(localPath, key string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", localPath)
	}
	defer in.Close()

	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create parent of %s", key)
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", key)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to upload %s", key)
	}
	return out.Close()
}
