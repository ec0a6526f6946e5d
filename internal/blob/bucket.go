// Package blob is the storage gateway for audio files and derived training
// data. The annotation session only sees the Bucket contract; the shipped
// implementation is a directory-rooted bucket whose download URLs are served
// by the HTTP layer.
package blob

import (
	"context"
	"io"
)

type Bucket interface {
	// Exists reports whether an object is present at the ref path.
	Exists(ctx context.Context, refPath string) (bool, error)
	// Open returns a read stream for the object.
	Open(ctx context.Context, refPath string) (io.ReadCloser, error)
	// Upload copies a local file into the bucket at the ref path.
	Upload(ctx context.Context, localPath, refPath string) error
	// DeletePrefix removes every object under the prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// DownloadURL issues a URL the player can stream the object from.
	DownloadURL(refPath string) (string, error)
}
