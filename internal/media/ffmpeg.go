package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"

	"github.com/vinylaudio/annotator/internal/blob"
	"github.com/vinylaudio/annotator/pkg/file"
	"github.com/vinylaudio/annotator/pkg/log"
)

type ffmpegSlicer struct {
	ffmpegCmd string
	bucket    blob.Bucket
	tmpDir    string
}

func NewFfmpegSlicer(bucket blob.Bucket, ffmpegCmd, tmpDir string) Slicer {
	if ffmpegCmd == "" {
		ffmpegCmd = "ffmpeg"
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &ffmpegSlicer{
		ffmpegCmd: ffmpegCmd,
		bucket:    bucket,
		tmpDir:    tmpDir,
	}
}

// SliceSnippet extracts the snippet's span from the source recording and
// uploads {id}.wav and {id}.txt under the audio's training-data prefix. The
// two uploads are independent; a failure between them leaves a partial pair,
// which a later purge-and-reannotate cycle cleans up.
func (f *ffmpegSlicer) SliceSnippet(ctx context.Context, req SliceRequest) error {
	exists, err := f.bucket.Exists(ctx, req.SourceAudioRefPath)
	if err != nil {
		return fmt.Errorf("check source audio: %w", err)
	}
	if !exists {
		return fmt.Errorf("no source audio file at %s", req.SourceAudioRefPath)
	}

	srcLocal, err := f.stageSource(ctx, req)
	if err != nil {
		return err
	}
	defer os.Remove(srcLocal)

	outLocal := filepath.Join(f.tmpDir, req.Snippet.ID+".wav")
	defer os.Remove(outLocal)

	cmdPath, err := exec.LookPath(f.ffmpegCmd)
	if err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	cmd := exec.CommandContext(ctx, cmdPath, sliceArgs(srcLocal, req.Snippet.StartTime, req.Snippet.EndTime, outLocal)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Error("ffmpeg failed for snippet %s: %v: %s", req.Snippet.ID, err, output)
		return fmt.Errorf("extract snippet %s: %w", req.Snippet.ID, err)
	}

	wavObject := path.Join(DerivedPrefix(req.SpeakerID, req.SourceAudioID), req.Snippet.ID+".wav")
	if err := f.bucket.Upload(ctx, outLocal, wavObject); err != nil {
		return fmt.Errorf("upload snippet audio: %w", err)
	}

	textLocal := file.ReplaceExt(outLocal, ".txt")
	defer os.Remove(textLocal)
	if err := writeTranscript(textLocal, req.Snippet.Text); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := f.bucket.Upload(ctx, textLocal, file.ReplaceExt(wavObject, ".txt")); err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}
	return nil
}

// stageSource copies the source object to a local file ffmpeg can seek in.
func (f *ffmpegSlicer) stageSource(ctx context.Context, req SliceRequest) (string, error) {
	r, err := f.bucket.Open(ctx, req.SourceAudioRefPath)
	if err != nil {
		return "", fmt.Errorf("open source audio: %w", err)
	}
	defer r.Close()

	local := filepath.Join(f.tmpDir, req.Snippet.ID+"-source"+filepath.Ext(req.SourceAudioRefPath))
	out, err := os.Create(local)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(local)
		return "", fmt.Errorf("stage source audio: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(local)
		return "", err
	}
	return local, nil
}

func sliceArgs(input string, start, end float64, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-ss", strconv.FormatFloat(start, 'f', -1, 64),
		"-to", strconv.FormatFloat(end, 'f', -1, 64),
		output,
	}
}

// writeTranscript writes the snippet text with a BOM so downstream tools
// pick up the encoding.
func writeTranscript(path, text string) error {
	return os.WriteFile(path, []byte("\ufeff"+text), 0o644)
}
