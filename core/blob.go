package core

import "context"

// BlobStore holds uploaded files (course and category images, verification documents).
// Uploading happens outside of this application; it only needs to clean up.
type BlobStore interface {
	// Delete removes the blob stored under key. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// DeleteBlobs deletes every non-empty key, logging failures instead of returning them:
// it runs after the owning transaction committed, when there is nothing left to roll back.
func DeleteBlobs(ctx context.Context, store BlobStore, logger Logger, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			logger.Error("deleting blob "+key, err)
		}
	}
}
