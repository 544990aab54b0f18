package blobsvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Delete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "courses"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "courses", "cover.png"), []byte("png"), 0o644))

	store := NewLocalStore(root)
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "existing blob", key: "courses/cover.png"},
		{name: "missing blob", key: "courses/missing.png"},
		{name: "escaping key", key: "../outside.txt", wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := store.Delete(ctx, tc.key)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := os.Stat(filepath.Join(root, "courses", "cover.png"))
	assert.True(t, os.IsNotExist(err))
}
