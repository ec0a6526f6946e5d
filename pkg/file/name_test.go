package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ascii", "Morning Recording", "morning-recording"},
		{"vietnamese accents", "Người đàn ông nhận thấy", "nguoi-dan-ong-nhan-thay"},
		{"special characters", "take #3 (final!)", "take-3-final"},
		{"keeps dashes and underscores", "session_01-a", "session_01-a"},
		{"trims outer whitespace", "  hello world  ", "hello-world"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.input))
		})
	}
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "dir/audio.txt", ReplaceExt("dir/audio.wav", ".txt"))
	assert.Equal(t, "audio.txt", ReplaceExt("audio", "txt"))
	assert.Equal(t, "", ReplaceExt("", ".txt"))
}
