package blobsvc

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/learnhub/core"
)

// GCSStore keeps blobs as objects of a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

var _ core.BlobStore = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

// New returns the store selected by conf.
func New(ctx context.Context, conf core.BlobConfig) (core.BlobStore, error) {
	switch conf.Driver {
	case "gcs":
		return NewGCSStore(ctx, conf.GCSBucket, conf.GCSCredentialsFile)
	case "local", "":
		return NewLocalStore(conf.LocalRoot), nil
	default:
		return nil, errors.Errorf("unknown blob driver %q", conf.Driver)
	}
}
