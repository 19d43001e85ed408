package modelrepo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"k8s.io/examples/AI/claimmodels/pkg/blobs"
	"k8s.io/klog/v2"
)

// Repository fetches model configs laid out as <model>/config.yaml.
type Repository struct {
	// reader is the interface to fetch blobs
	reader blobs.BlobReader

	// lister is nil when the source cannot enumerate its models
	lister blobs.BlobLister

	// cacheDir receives downloaded config files
	cacheDir string

	// maxDownloadAttempts is the number of times to attempt a download before failing
	maxDownloadAttempts int

	retryInterval time.Duration
}

type Options struct {
	CacheDir            string
	MaxDownloadAttempts int
	RetryInterval       time.Duration
}

// Open selects a blob reader for source: gs://bucket[/prefix], http(s)://model-store, or a local directory.
func Open(source string, opts Options) (*Repository, error) {
	r := newRepository(opts)

	switch {
	case strings.HasPrefix(source, "gs://"):
		store, err := blobs.ParseGCSURL(source)
		if err != nil {
			return nil, err
		}
		r.reader, r.lister = store, store

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		u, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("parsing model store url %q: %w", source, err)
		}
		r.reader = &blobs.ModelServer{BlobserverURL: u}

	case source != "":
		store := &blobs.DirBlobstore{BaseDir: source}
		r.reader, r.lister = store, store

	default:
		return nil, errors.New("model repository source is required")
	}
	return r, nil
}

// NewRepository builds a Repository over an existing reader, for callers that construct their own blobstore.
func NewRepository(reader blobs.BlobReader, lister blobs.BlobLister, opts Options) *Repository {
	r := newRepository(opts)
	r.reader, r.lister = reader, lister
	return r
}

func newRepository(opts Options) *Repository {
	r := &Repository{
		cacheDir:            opts.CacheDir,
		maxDownloadAttempts: opts.MaxDownloadAttempts,
		retryInterval:       opts.RetryInterval,
	}
	if r.maxDownloadAttempts <= 0 {
		r.maxDownloadAttempts = 1
	}
	if r.cacheDir == "" {
		r.cacheDir = filepath.Join(os.TempDir(), "claimmodels")
	}
	return r
}

// List returns the names of the models in the repository.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	if r.lister == nil {
		return nil, errors.New("model repository cannot list models; name them in the server config")
	}
	infos, err := r.lister.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		dir, file := path.Split(info.Key)
		dir = strings.TrimSuffix(dir, "/")
		if file != ConfigFileName || dir == "" || strings.Contains(dir, "/") {
			continue
		}
		names = append(names, dir)
	}
	sort.Strings(names)
	return names, nil
}

// Load fetches and parses the config of the named model.
func (r *Repository) Load(ctx context.Context, name string) (*ModelConfig, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid model name %q", name)
	}
	info := blobs.BlobInfo{Key: name + "/" + ConfigFileName}
	localPath := filepath.Join(r.cacheDir, name, ConfigFileName)

	if err := r.downloadToFile(ctx, info, localPath); err != nil {
		return nil, fmt.Errorf("fetching config for model %q: %w", name, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening config for model %q: %w", name, err)
	}
	defer f.Close()

	cfg, err := ParseModelConfig(f)
	if err != nil {
		return nil, fmt.Errorf("parsing config for model %q: %w", name, err)
	}
	if cfg.Name != name {
		return nil, fmt.Errorf("config at %q names model %q", info.Key, cfg.Name)
	}
	return cfg, nil
}

func (r *Repository) downloadToFile(ctx context.Context, info blobs.BlobInfo, destPath string) error {
	log := klog.FromContext(ctx)

	attempt := 0
	for {
		attempt++

		err := r.reader.Download(ctx, info, destPath)
		if err == nil {
			return nil
		}

		if attempt >= r.maxDownloadAttempts || errors.Is(err, os.ErrNotExist) {
			return err
		}

		log.Error(err, "downloading blob, will retry", "info", info, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryInterval):
		}
	}
}
