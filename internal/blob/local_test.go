package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBucket(t *testing.T) *LocalBucket {
	t.Helper()
	b, err := NewLocalBucket(t.TempDir(), "http://localhost:8080/files")
	require.NoError(t, err)
	return b
}

func TestLocalBucket_UploadExistsOpen(t *testing.T) {
	b := newTestBucket(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, os.WriteFile(local, []byte("RIFF-data"), 0o644))

	ok, err := b.Exists(ctx, "source-audios/take.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Upload(ctx, local, "source-audios/take.wav"))

	ok, err = b.Exists(ctx, "source-audios/take.wav")
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := b.Open(ctx, "source-audios/take.wav")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-data", string(data))
}

func TestLocalBucket_DeletePrefix(t *testing.T) {
	b := newTestBucket(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "chunk.wav")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	require.NoError(t, b.Upload(ctx, local, "training-data/sp-1/audio-1/s1.wav"))
	require.NoError(t, b.Upload(ctx, local, "training-data/sp-1/audio-1/s2.wav"))
	require.NoError(t, b.Upload(ctx, local, "training-data/sp-1/audio-2/s3.wav"))

	require.NoError(t, b.DeletePrefix(ctx, "training-data/sp-1/audio-1"))

	ok, _ := b.Exists(ctx, "training-data/sp-1/audio-1/s1.wav")
	assert.False(t, ok)
	ok, _ = b.Exists(ctx, "training-data/sp-1/audio-2/s3.wav")
	assert.True(t, ok, "sibling prefixes must survive")
}

func TestLocalBucket_DownloadURL(t *testing.T) {
	b := newTestBucket(t)

	got, err := b.DownloadURL("source-audios/nguoi-dan-ong.wav")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/source-audios/nguoi-dan-ong.wav", got)
}

func TestLocalBucket_RejectsEscapingPaths(t *testing.T) {
	b := newTestBucket(t)
	ctx := context.Background()

	_, err := b.Open(ctx, "../outside.wav")
	assert.Error(t, err)
	_, err = b.DownloadURL("")
	assert.Error(t, err)
}
