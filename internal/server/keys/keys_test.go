package keys

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"plain", "report.pdf", false},
		{"spaces", "annual report 2024", false},
		{"dot", ".hidden", false},
		{"empty", "", true},
		{"separator", "a/b", true},
		{"separator only", "/", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.value)
			if tc.wantErr {
				require.ErrorIs(t, err, common.ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDerive(t *testing.T) {
	key, err := Derive("u1", nil, "a.txt", false)
	require.NoError(t, err)
	require.Equal(t, "u1/a.txt", key)

	key, err = Derive("u1", []string{"docs", "work"}, "a.txt", false)
	require.NoError(t, err)
	require.Equal(t, "u1/docs/work/a.txt", key)

	key, err = Derive("u1", []string{"docs"}, "work", true)
	require.NoError(t, err)
	require.Equal(t, "u1/docs/work/", key)

	_, err = Derive("u1", []string{"do/cs"}, "a.txt", false)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDerive_DistinctPathsDistinctKeys(t *testing.T) {
	// The trailing separator on folder keys keeps a folder "a" and a file
	// "a" under the same parent from colliding.
	folder, err := Derive("u1", nil, "a", true)
	require.NoError(t, err)
	file, err := Derive("u1", nil, "a", false)
	require.NoError(t, err)
	require.NotEqual(t, folder, file)
}

func TestChunkKey(t *testing.T) {
	require.Equal(t, "u1/movie.mp4/chunk-0", ChunkKey("u1", "movie.mp4", 0))
	require.Equal(t, "u1/movie.mp4/chunk-17", ChunkKey("u1", "movie.mp4", 17))
}

func TestRewritePrefix(t *testing.T) {
	key, err := RewritePrefix("u1/docs/a.txt", "u1/docs/", "u1/archive/docs/")
	require.NoError(t, err)
	require.Equal(t, "u1/archive/docs/a.txt", key)

	_, err = RewritePrefix("u1/other/a.txt", "u1/docs/", "u1/archive/")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestReplaceLeaf(t *testing.T) {
	key, err := ReplaceLeaf("u1/docs/a.txt", "b.txt")
	require.NoError(t, err)
	require.Equal(t, "u1/docs/b.txt", key)

	key, err = ReplaceLeaf("u1/docs/", "archive")
	require.NoError(t, err)
	require.Equal(t, "u1/archive/", key)

	// A segment equal to the old leaf name earlier in the path stays put.
	key, err = ReplaceLeaf("u1/a/a", "b")
	require.NoError(t, err)
	require.Equal(t, "u1/a/b", key)

	_, err = ReplaceLeaf("naked", "b")
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrValidation))
}
