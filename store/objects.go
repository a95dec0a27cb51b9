package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectsConfig configures an S3-compatible object store.
type ObjectsConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// Objects is a Store keeping one object per record, named
// "<partition>/<row>". Timestamp and ETag come from the object metadata.
// S3 has no batched read, so Get issues one request per key.
type Objects struct {
	client *minio.Client
	bucket string
}

// NewObjects connects to an S3-compatible endpoint.
func NewObjects(cfg ObjectsConfig) (*Objects, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("store: minio client: %w", err)
	}
	return &Objects{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (o *Objects) EnsureBucket(ctx context.Context) error {
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{})
}

// Ping checks that the endpoint answers and the bucket exists.
func (o *Objects) Ping(ctx context.Context) error {
	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("store: bucket %q does not exist", o.bucket)
	}
	return nil
}

// Get implements Store.
func (o *Objects) Get(ctx context.Context, partition string, keys []string) ([]Record, error) {
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, ok, err := o.get(ctx, partition, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (o *Objects) get(ctx context.Context, partition, key string) (Record, bool, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, storageKey(partition, key), minio.GetObjectOptions{})
	if err != nil {
		return Record{}, false, fmt.Errorf("store: get object %s/%s: %w", partition, key, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing object only surfaces on Stat or Read.
	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("store: stat object %s/%s: %w", partition, key, err)
	}
	value, err := io.ReadAll(obj)
	if err != nil {
		return Record{}, false, fmt.Errorf("store: read object %s/%s: %w", partition, key, err)
	}
	return Record{
		PartitionKey: partition,
		RowKey:       key,
		Value:        value,
		Timestamp:    info.LastModified,
		ETag:         info.ETag,
	}, true, nil
}

// Upsert implements Store.
func (o *Objects) Upsert(ctx context.Context, partition, key string, value []byte) error {
	_, err := o.client.PutObject(ctx, o.bucket, storageKey(partition, key),
		bytes.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("store: put object %s/%s: %w", partition, key, err)
	}
	return nil
}
