package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicID(t *testing.T) {
	require.Equal(t, "answer-3f2a9c", PublicID("answer-3f2a9c.png"))
	require.Equal(t, "q1_final-sheet", PublicID("dir/q1_final sheet.jpg"))
	require.Equal(t, "answer", PublicID(".png"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestNewDefaultsFolder(t *testing.T) {
	storage, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, DefaultFolder, storage.folder)
}
