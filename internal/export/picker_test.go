package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/cutline-api/internal/timeline"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("EDL")
	require.NoError(t, err)
	assert.Equal(t, FormatEDL, f)
	assert.Equal(t, ".edl", f.Extension())

	f, err = ParseFormat("fcpxml")
	require.NoError(t, err)
	assert.Equal(t, ".fcpxmld", f.Extension())

	_, err = ParseFormat("aaf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDirPicker(t *testing.T) {
	dir := t.TempDir()
	p := NewDirPicker(dir)
	ctx := context.Background()

	path, ok, err := p.Pick(ctx, Request{Name: "My Interview", Format: FormatEDL})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "My Interview.edl"), path)

	t.Run("unsafe names stay inside the directory", func(t *testing.T) {
		path, ok, err := p.Pick(ctx, Request{Name: "../../etc/passwd", Format: FormatFCPXML})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, dir, filepath.Dir(path))
	})

	t.Run("empty name", func(t *testing.T) {
		path, ok, err := p.Pick(ctx, Request{Name: "  ", Format: FormatEDL})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "export.edl"), path)
	})

	t.Run("existing destination declines without overwrite", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "taken.edl"), []byte("x"), 0644))

		_, ok, err := p.Pick(ctx, Request{Name: "taken", Format: FormatEDL})
		require.NoError(t, err)
		assert.False(t, ok)

		path, ok, err := p.Pick(ctx, Request{Name: "taken", Format: FormatEDL, Overwrite: true})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "taken.edl"), path)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := p.Pick(cctx, Request{Name: "x", Format: FormatEDL})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWriteEDL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cut.edl")

	require.NoError(t, WriteEDL(path, "TITLE: a\n"))
	require.NoError(t, WriteEDL(path, "TITLE: b\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TITLE: b\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteFCPXMLBundle(t *testing.T) {
	doc, err := FCPXML([]timeline.Clip{{Start: 0, End: 1}}, baseFCPXMLOptions())
	require.NoError(t, err)

	bundle := filepath.Join(t.TempDir(), "cut.fcpxmld")
	path, err := WriteFCPXMLBundle(bundle, doc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(bundle, "Info.fcpxml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE fcpxml>")
}
