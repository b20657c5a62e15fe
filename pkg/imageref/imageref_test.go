package imageref

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseClassifiesSources(t *testing.T) {
	require.True(t, Parse("https://cdn.example.com/a.png").IsRemote())
	require.True(t, Parse("  HTTP://cdn.example.com/a.png ").IsRemote())
	require.Equal(t, KindLocal, Parse("uploads/answer.jpg").Kind())
	require.Equal(t, KindLocal, Parse("httpfiles/answer.jpg").Kind())
	require.True(t, Parse("   ").IsZero())
}

func TestEncodeRemotePassthrough(t *testing.T) {
	enc := NewEncoder(zerolog.Nop())

	img, err := enc.Encode(Parse("https://cdn.example.com/answer.png"))
	require.NoError(t, err)
	require.False(t, img.IsInline())
	require.Equal(t, "https://cdn.example.com/answer.png", img.DataURL())
}

func TestEncodeLocalPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.PNG")
	payload := []byte{0x89, 0x50, 0x4E, 0x47}
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	img, err := NewEncoder(zerolog.Nop()).Encode(Local(path))
	require.NoError(t, err)
	require.Equal(t, "image/png", img.MIMEType)
	require.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(payload), img.DataURL())

	decoded, err := img.Bytes()
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestEncodeUnknownExtensionFallsBackToJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.tiff")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	var logs bytes.Buffer
	img, err := NewEncoder(zerolog.New(&logs)).Encode(Local(path))
	require.NoError(t, err)
	require.Equal(t, DefaultMIMEType, img.MIMEType)
	require.Contains(t, logs.String(), "unrecognised image extension")
	require.Contains(t, logs.String(), ".tiff")
}

func TestEncodeMissingFile(t *testing.T) {
	_, err := NewEncoder(zerolog.Nop()).Encode(Local(filepath.Join(t.TempDir(), "missing.png")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEncodeUnreadableFile(t *testing.T) {
	_, err := NewEncoder(zerolog.Nop()).Encode(Local(t.TempDir()))
	require.ErrorIs(t, err, ErrIO)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestMIMEForPath(t *testing.T) {
	cases := map[string]string{
		"a.png":  "image/png",
		"a.jpg":  "image/jpeg",
		"a.JPEG": "image/jpeg",
		"a.gif":  "image/gif",
		"a.webp": "image/webp",
	}
	for path, want := range cases {
		got, known := MIMEForPath(path)
		require.True(t, known, path)
		require.Equal(t, want, got, path)
	}

	got, known := MIMEForPath("a.bmp")
	require.False(t, known)
	require.Equal(t, "image/jpeg", got)
}
