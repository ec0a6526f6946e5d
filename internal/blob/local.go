package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vinylaudio/annotator/pkg/file"
)

// LocalBucket stores objects as files under a root directory. Ref paths use
// forward slashes regardless of platform.
type LocalBucket struct {
	root    string
	baseURL string
}

// NewLocalBucket roots a bucket at dir. baseURL is prepended to download
// URLs (e.g. "http://localhost:8080/files").
func NewLocalBucket(dir, baseURL string) (*LocalBucket, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("bucket root is required")
	}
	if err := file.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create bucket root: %w", err)
	}
	return &LocalBucket{
		root:    dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (b *LocalBucket) Exists(_ context.Context, refPath string) (bool, error) {
	local, err := b.localPath(refPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (b *LocalBucket) Open(_ context.Context, refPath string) (io.ReadCloser, error) {
	local, err := b.localPath(refPath)
	if err != nil {
		return nil, err
	}
	return os.Open(local)
}

func (b *LocalBucket) Upload(_ context.Context, localPath, refPath string) error {
	dest, err := b.localPath(refPath)
	if err != nil {
		return err
	}
	if err := file.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func (b *LocalBucket) DeletePrefix(_ context.Context, prefix string) error {
	local, err := b.localPath(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(local)
}

func (b *LocalBucket) DownloadURL(refPath string) (string, error) {
	if _, err := b.localPath(refPath); err != nil {
		return "", err
	}
	escaped := make([]string, 0)
	for _, part := range strings.Split(path.Clean(refPath), "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return b.baseURL + "/" + strings.Join(escaped, "/"), nil
}

// localPath maps a ref path onto the root, rejecting escapes.
func (b *LocalBucket) localPath(refPath string) (string, error) {
	if strings.Contains(refPath, "..") {
		return "", fmt.Errorf("invalid ref path: %s", refPath)
	}
	cleaned := path.Clean("/" + refPath)
	if cleaned == "/" {
		return "", fmt.Errorf("empty ref path")
	}
	return filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}
