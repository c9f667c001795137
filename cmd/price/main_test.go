package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/bsheat/internal/blackscholes"
)

func TestRunSinglePrice(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(nil, &out))
	assert.Equal(t, "Call price: 10.4506\n", out.String())

	out.Reset()
	require.NoError(t, run([]string{"-type", "put"}, &out))
	assert.Equal(t, "Put price: 5.5735\n", out.String())
}

func TestRunRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-vol", "0"}, &out)
	assert.ErrorIs(t, err, blackscholes.ErrInvalidArgument)

	assert.Error(t, run([]string{"-type", "straddle"}, &out))
	assert.ErrorIs(t, run([]string{"-surface", "-res", "0"}, &out), blackscholes.ErrInvalidArgument)
}

func TestRunSurfaceTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-surface", "-res", "3"}, &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "0.300")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[1]), "50.00"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[3]), "150.00"))
}

func TestRunWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatmap.png")
	var out bytes.Buffer
	require.NoError(t, run([]string{"-res", "4", "-png", path}, &out))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}
