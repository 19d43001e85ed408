package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/claimmodels/pkg/blobs"
	"k8s.io/klog/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := ":8080"
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		// CACHE_DIR is set on kubernetes; default sensibly for local dev
		cacheDir = "~/.cache/claimmodels/blobs"
	}
	publishDir := ""
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	flag.StringVar(&publishDir, "publish", publishDir, "upload the model repository in this directory to CACHE_BUCKET, then exit")
	klog.InitFlags(nil)
	flag.Parse()

	if strings.HasPrefix(cacheDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, strings.TrimPrefix(cacheDir, "~/"))
	}

	cacheBucket := os.Getenv("CACHE_BUCKET")
	if cacheBucket == "" {
		return fmt.Errorf("must specify CACHE_BUCKET env var")
	}
	upstream, err := blobs.ParseGCSURL(cacheBucket)
	if err != nil {
		return fmt.Errorf("CACHE_BUCKET: %w", err)
	}
	log.Info("using GCS bucket", "bucket", upstream.Bucket, "prefix", upstream.Prefix)

	if publishDir != "" {
		return publish(ctx, publishDir, upstream)
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	s := &httpServer{
		blobCache: &blobCache{
			local:    &blobs.DirBlobstore{BaseDir: cacheDir},
			upstream: upstream,
		},
	}

	srv := &http.Server{
		Addr:    listen,
		Handler: s,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "shutting down http server")
		}
	}()

	log.Info("serving", "listen", listen, "cacheDir", cacheDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}
	return nil
}

// publish uploads every file below dir, keyed by its slash separated relative path.
func publish(ctx context.Context, dir string, store blobs.Blobstore) error {
	log := klog.FromContext(ctx)

	return filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info := blobs.BlobInfo{Key: filepath.ToSlash(rel)}
		if err := store.Upload(ctx, p, info); err != nil {
			return fmt.Errorf("publishing %q: %w", info.Key, err)
		}
		log.Info("published", "key", info.Key)
		return nil
	})
}

type httpServer struct {
	blobCache *blobCache
}

func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.serveGETBlob(w, r, key)
}

func (s *httpServer) serveGETBlob(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	log := klog.FromContext(ctx)

	f, err := s.blobCache.GetBlob(ctx, key)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			http.Error(w, "not found", http.StatusNotFound)
		case codes.InvalidArgument:
			http.Error(w, "bad request", http.StatusBadRequest)
		default:
			log.Error(err, "error getting blob", "key", key)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		log.Error(err, "stat blob", "key", key)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.V(2).Info("serving blob", "key", key, "bytes", stat.Size())
	http.ServeContent(w, r, filepath.Base(key), stat.ModTime(), f)
}

// blobCache serves blobs from a local directory, filling misses from upstream.
type blobCache struct {
	local    *blobs.DirBlobstore
	upstream blobs.BlobReader
}

func (c *blobCache) GetBlob(ctx context.Context, key string) (*os.File, error) {
	log := klog.FromContext(ctx)

	f, err := c.local.Open(key)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		if _, pathErr := err.(*fs.PathError); !pathErr {
			return nil, status.Errorf(codes.InvalidArgument, "blob key %q: %v", key, err)
		}
		return nil, fmt.Errorf("opening blob %q: %w", key, err)
	}

	localPath := filepath.Join(c.local.BaseDir, filepath.FromSlash(key))
	if err := c.upstream.Download(ctx, blobs.BlobInfo{Key: key}, localPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, status.Errorf(codes.NotFound, "blob %q not found", key)
		}
		return nil, fmt.Errorf("fetching blob %q: %w", key, err)
	}
	log.Info("cached blob from upstream", "key", key)

	return c.local.Open(key)
}
