package blobs

import "context"

type BlobReader interface {
	// If no such object exists, Download should return an error for which errors.Is(err, os.ErrNotExist) is true.
	Download(ctx context.Context, info BlobInfo, destPath string) error
}

type BlobLister interface {
	// List returns the blobs whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

type Blobstore interface {
	BlobReader
	BlobLister
	// Upload uploads the file at sourcePath to the blobstore under info.Key.
	// If an object with the same key and content already exists, Upload should do nothing and return no error.
	Upload(ctx context.Context, sourcePath string, info BlobInfo) error
}

// BlobInfo identifies a blob. Key is slash separated, e.g. "classify_claim_value/config.yaml".
type BlobInfo struct {
	Key  string
	Size int64
}
