package ports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandResult_Success(t *testing.T) {
	t.Parallel()

	assert.True(t, CommandResult{ExitCode: 0, Stdout: "gho_token"}.Success())
	assert.False(t, CommandResult{ExitCode: 1, Stderr: "not logged in"}.Success())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/koreader", filepath.Join(home, "koreader")},
		{"/mnt/onboard/.adds/koreader", "/mnt/onboard/.adds/koreader"},
		{"relative/~/path", "relative/~/path"},
		{"~user/koreader", "~user/koreader"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestErrField(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Field{Key: "error", Value: ""}, Err(nil))
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(assertError("boom")))
}

type assertError string

func (e assertError) Error() string { return string(e) }
