package visualization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserCommand(t *testing.T) {
	const url = "http://localhost:8080/"
	tests := []struct {
		goos string
		want []string
	}{
		{"linux", []string{"xdg-open", url}},
		{"darwin", []string{"open", url}},
		{"windows", []string{"cmd", "/c", "start", url}},
	}
	for _, tt := range tests {
		cmd, err := browserCommand(tt.goos, url)
		require.NoError(t, err, tt.goos)
		assert.Equal(t, tt.want, cmd.Args, tt.goos)
	}

	_, err := browserCommand("plan9", url)
	assert.Error(t, err, "unsupported platform")
}
