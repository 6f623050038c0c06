package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.toml")

	l, err := Open(path)
	require.NoError(t, err)

	l.Printf("BTC BUY %s shares @ $%s", "10", "0.4500")
	l.Write("plain line")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BTC BUY 10 shares @ $0.4500")
	assert.Contains(t, string(data), "plain line")
}

func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.toml")

	l, err := Open(path)
	require.NoError(t, err)
	l.Write("first run")
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	l.Write("second run")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
}

func TestNopNeverWritesFiles(t *testing.T) {
	l := Nop()
	l.Printf("goes to stderr only")
	assert.NoError(t, l.Close())
}
