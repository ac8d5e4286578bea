package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio/imageiotest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func photoFolder(t *testing.T) (reference, dir string) {
	t.Helper()
	tmp := t.TempDir()
	ref := imageiotest.JPEG(t, 64, 64, imageiotest.Gray(1))

	reference = imageiotest.WriteFile(t, filepath.Join(tmp, "me.jpg"), ref)
	dir = filepath.Join(tmp, "photos")
	imageiotest.WriteFile(t, filepath.Join(dir, "day1", "a.jpg"), ref)
	imageiotest.WriteFile(t, filepath.Join(dir, "day1", "b.png"), imageiotest.PNG(t, 64, 64, imageiotest.Gray(5)))
	imageiotest.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("not a photo"))
	return reference, dir
}

func TestMatchCmd_Dir(t *testing.T) {
	reference, dir := photoFolder(t)

	out, err := execute(t, "match", "--reference", reference, "--dir", dir, "--provider", "mock", "--json")
	require.NoError(t, err)

	var result MatchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, []string{"day1/a.jpg"}, result.Matches)
	assert.Empty(t, result.Reason)
}

func TestMatchCmd_TextOutput(t *testing.T) {
	reference, dir := photoFolder(t)

	out, err := execute(t, "match", "--reference", reference, "--dir", dir, "--provider", "mock", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 2 photos")
	assert.Contains(t, out, "Found 1 matching photo:")
	assert.Contains(t, out, "day1/a.jpg")
}

func TestMatchCmd_ZipWithOut(t *testing.T) {
	reference, dir := photoFolder(t)
	tmp := t.TempDir()

	zipPath := filepath.Join(tmp, "photos.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"day1/a.jpg", "day1/b.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	outZip := filepath.Join(tmp, "mine.zip")
	out, err := execute(t, "match", "--reference", reference, "--zip", zipPath, "--out", outZip, "--provider", "mock", "--json")
	require.NoError(t, err)

	var result MatchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Matches, 1)
	assert.Equal(t, outZip, result.Archive)

	zr, err := zip.OpenReader(outZip)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "a.jpg", zr.File[0].Name)
}

func TestMatchCmd_NoMatches(t *testing.T) {
	tmp := t.TempDir()
	reference := imageiotest.WriteFile(t, filepath.Join(tmp, "me.jpg"), imageiotest.JPEG(t, 64, 64, imageiotest.Gray(1)))
	dir := filepath.Join(tmp, "photos")
	imageiotest.WriteFile(t, filepath.Join(dir, "x.jpg"), imageiotest.JPEG(t, 64, 64, imageiotest.Gray(9)))

	outZip := filepath.Join(tmp, "mine.zip")
	out, err := execute(t, "match", "--reference", reference, "--dir", dir, "--out", outZip, "--provider", "mock", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching photos found.")
	assert.NoFileExists(t, outZip)
}

func TestMatchCmd_FlagErrors(t *testing.T) {
	reference, dir := photoFolder(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing reference", []string{"match", "--dir", dir, "--provider", "mock"}},
		{"missing source", []string{"match", "--reference", reference, "--provider", "mock"}},
		{"dir and zip", []string{"match", "--reference", reference, "--dir", dir, "--zip", "x.zip", "--provider", "mock"}},
		{"threshold out of range", []string{"match", "--reference", reference, "--dir", dir, "--provider", "mock", "--threshold", "1.5"}},
		{"unknown provider", []string{"match", "--reference", reference, "--dir", dir, "--provider", "nope"}},
		{"reference does not exist", []string{"match", "--reference", filepath.Join(dir, "missing.jpg"), "--dir", dir, "--provider", "mock"}},
		{"zip is not a zip", []string{"match", "--reference", reference, "--zip", reference, "--provider", "mock"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "facefind "+Version)
}
