package blobs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog/v2"
)

// DirBlobstore keeps blobs as files below BaseDir.
type DirBlobstore struct {
	BaseDir string
}

var _ Blobstore = (*DirBlobstore)(nil)

func (d *DirBlobstore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(d.BaseDir, clean), nil
}

// Open opens the blob for reading; a missing blob satisfies errors.Is(err, os.ErrNotExist).
func (d *DirBlobstore) Open(key string) (*os.File, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (d *DirBlobstore) Download(ctx context.Context, info BlobInfo, destPath string) error {
	f, err := d.Open(info.Key)
	if err != nil {
		return fmt.Errorf("opening blob %q: %w", info.Key, err)
	}
	defer f.Close()

	n, err := writeToFile(ctx, f, destPath)
	if err != nil {
		return fmt.Errorf("copying blob %q: %w", info.Key, err)
	}
	klog.FromContext(ctx).V(2).Info("copied blob", "key", info.Key, "destination", destPath, "bytes", n)
	return nil
}

func (d *DirBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	p, err := d.path(info.Key)
	if err != nil {
		return err
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, p); err != nil {
		return fmt.Errorf("storing blob %q: %w", info.Key, err)
	}
	return nil
}

func (d *DirBlobstore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var out []BlobInfo
	err := filepath.WalkDir(d.BaseDir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.BaseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		out = append(out, BlobInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", d.BaseDir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
