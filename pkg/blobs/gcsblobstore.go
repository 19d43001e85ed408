package blobs

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"k8s.io/klog/v2"
)

// GCSBlobstore stores blobs as objects in a GCS bucket, under an optional key prefix.
type GCSBlobstore struct {
	Bucket string
	Prefix string

	// NewClient is used to create the storage client; storage.NewClient when nil.
	NewClient func(ctx context.Context) (*storage.Client, error)
}

var _ Blobstore = (*GCSBlobstore)(nil)

// ParseGCSURL splits gs://bucket/prefix into a GCSBlobstore.
func ParseGCSURL(u string) (*GCSBlobstore, error) {
	if !strings.HasPrefix(u, "gs://") {
		return nil, fmt.Errorf("%q is not a GCS url (gs://<bucketName>[/prefix])", u)
	}
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u, "gs://"), "/")
	if bucket == "" {
		return nil, fmt.Errorf("%q does not name a bucket", u)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &GCSBlobstore{Bucket: bucket, Prefix: prefix}, nil
}

func (j *GCSBlobstore) client(ctx context.Context) (*storage.Client, error) {
	newClient := j.NewClient
	if newClient == nil {
		newClient = func(ctx context.Context) (*storage.Client, error) {
			return storage.NewClient(ctx)
		}
	}
	client, err := newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	return client, nil
}

func (j *GCSBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	log := klog.FromContext(ctx)

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	checksum := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	if _, err := io.Copy(checksum, src); err != nil {
		return fmt.Errorf("hashing source file: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding source file: %w", err)
	}

	objectKey := j.Prefix + info.Key
	gcsURL := "gs://" + j.Bucket + "/" + objectKey

	client, err := j.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	obj := client.Bucket(j.Bucket).Object(objectKey)
	objAttrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			objAttrs = nil
			log.Info("object not found in GCS", "url", gcsURL)
			// Fallthrough to upload object
		} else {
			return fmt.Errorf("getting object attributes for %q: %w", gcsURL, err)
		}
	}
	if objAttrs != nil && objAttrs.CRC32C == checksum.Sum32() {
		log.Info("object already exists in GCS", "url", gcsURL)
		return nil
	}

	log.Info("uploading blob to GCS", "source", sourcePath, "destination", gcsURL)

	startedAt := time.Now()
	w := obj.NewWriter(ctx)
	n, err := io.Copy(w, src)
	if err != nil {
		return fmt.Errorf("uploading to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing GCS writer: %w", err)
	}

	log.Info("uploaded blob to GCS", "url", gcsURL, "bytes", n, "duration", time.Since(startedAt))

	return nil
}

func (j *GCSBlobstore) Download(ctx context.Context, info BlobInfo, destinationPath string) error {
	log := klog.FromContext(ctx)

	objectKey := j.Prefix + info.Key
	gcsURL := "gs://" + j.Bucket + "/" + objectKey

	client, err := j.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info("downloading blob from GCS", "source", gcsURL, "destination", destinationPath)

	startedAt := time.Now()
	r, err := client.Bucket(j.Bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("object %q not found: %w", gcsURL, os.ErrNotExist)
		}
		return fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	defer r.Close()

	n, err := writeToFile(ctx, r, destinationPath)
	if err != nil {
		return fmt.Errorf("downloading from GCS: %w", err)
	}

	log.Info("downloaded blob from GCS", "source", gcsURL, "destination", destinationPath, "bytes", n, "duration", time.Since(startedAt))

	return nil
}

func (j *GCSBlobstore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	client, err := j.client(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var out []BlobInfo
	it := client.Bucket(j.Bucket).Objects(ctx, &storage.Query{Prefix: j.Prefix + prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", j.Bucket, j.Prefix+prefix, err)
		}
		out = append(out, BlobInfo{
			Key:  strings.TrimPrefix(attrs.Name, j.Prefix),
			Size: attrs.Size,
		})
	}
	return out, nil
}

func writeToFile(ctx context.Context, src io.Reader, destinationPath string) (int64, error) {
	log := klog.FromContext(ctx)

	dir := filepath.Dir(destinationPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating directory %q: %w", dir, err)
	}
	tempFile, err := os.CreateTemp(dir, "download")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("downloading from upstream source: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return n, nil
}
