package packager

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/plugci/plugci/types"
)

// ZipDir archives the tree rooted at srcDir into destPath. Every entry is
// prefixed with topDir so the archive extracts into a single top-level
// directory. Entries are written in the lexicographic order of filepath.Walk
// and stamped with the build timestamp, so identical trees produce identical
// archives. Returns the number of files written.
func ZipDir(srcDir, topDir, destPath string, build types.BuildInfo) (int, error) {
	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	stamp := time.Unix(build.Time, 0).UTC()
	if build.Time == 0 {
		stamp = time.Unix(0, 0).UTC()
	}

	zw := zip.NewWriter(out)
	count := 0
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		header := &zip.FileHeader{
			Name:     topDir + "/" + filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: stamp,
		}
		header.SetMode(info.Mode().Perm())
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", rel, err)
		}
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer in.Close()
		if _, err := io.Copy(entry, in); err != nil {
			return fmt.Errorf("failed to compress %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return count, nil
}

// Unzip extracts the archive at srcPath into destDir and returns the number
// of extracted files. Entries escaping destDir are rejected.
func Unzip(srcPath, destDir string) (int, error) {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %s: %w", srcPath, err)
	}
	defer zr.Close()

	count := 0
	for _, entry := range zr.File {
		target := filepath.Join(destDir, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return 0, fmt.Errorf("archive %s contains invalid path %s", srcPath, entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, fmt.Errorf("failed to create %s: %w", target, err)
			}
			continue
		}
		if err := extractFile(entry, target); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to read archive entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return out.Close()
}

// Details computes the size and checksum identity of a produced archive.
func Details(path, name string) (*types.PackageDetails, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	sum, err := fileChecksum(path)
	if err != nil {
		return nil, err
	}
	return &types.PackageDetails{Name: name, Size: info.Size(), Checksum: sum}, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
