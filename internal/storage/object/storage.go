package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/storage"
)

const defaultPrefix = "upload"

// Storage keeps artifacts in an S3-compatible bucket using MinIO. Objects live
// under a single prefix, mirroring the directory layout of the file backend.
type Storage struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// Options describes how to reach the bucket.
type Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	Prefix     string
	Region     string // empty means look the bucket region up
	UseSSL     bool
}

// NewStorage connects to the MinIO server and creates the bucket if it does
// not exist yet. Bucket checks are retried with strategy.
func NewStorage(ctx context.Context, opts Options, strategy retry.Strategy) (*Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	err = retry.Do(func() error {
		return ensureBucket(ctx, client, opts.BucketName)
	}, strategy)
	if err != nil {
		return nil, err
	}

	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Storage{
		client:     client,
		bucketName: opts.BucketName,
		prefix:     prefix,
	}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Write uploads data as <prefix>/<role>-<filename>.png and confirms it with a stat.
func (s *Storage) Write(ctx context.Context, role model.Role, filename string, data []byte) (model.Artifact, error) {
	name := storage.ArtifactName(role, filename)
	objectName := path.Join(s.prefix, name)

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: model.FormatPNG.ContentType(),
	})
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to save object %s: %w", objectName, err)
	}

	info, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}

	return model.Artifact{
		Role:    role,
		Name:    name,
		Format:  model.FormatPNG,
		Path:    objectName,
		Locator: storage.Locator(s.prefix, name),
		Size:    info.Size,
	}, nil
}

// ReadAndRetain downloads the object referenced by locator.
func (s *Storage) ReadAndRetain(ctx context.Context, locator string) ([]byte, error) {
	objectName, err := s.resolve(ctx, locator)
	if err != nil {
		return nil, err
	}

	return s.read(ctx, objectName)
}

// ReadAndDelete downloads the object referenced by locator and removes it.
// Removal is attempted even when the download fails or ctx is canceled.
func (s *Storage) ReadAndDelete(ctx context.Context, locator string) (data []byte, err error) {
	objectName, err := s.resolve(ctx, locator)
	if err != nil {
		return nil, err
	}

	defer func() {
		rmCtx := context.WithoutCancel(ctx)
		rmErr := s.client.RemoveObject(rmCtx, s.bucketName, objectName, minio.RemoveObjectOptions{})
		if rmErr != nil && err == nil {
			err = fmt.Errorf("failed to delete object %s: %w", objectName, rmErr)
		}
	}()

	return s.read(ctx, objectName)
}

// Delete removes the object referenced by locator, if any.
func (s *Storage) Delete(ctx context.Context, locator string) error {
	name, err := storage.ResolveName(locator)
	if err != nil {
		return nil
	}

	objectName := path.Join(s.prefix, name)
	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectName, err)
	}

	return nil
}

func (s *Storage) resolve(ctx context.Context, locator string) (string, error) {
	name, err := storage.ResolveName(locator)
	if err != nil {
		return "", err
	}

	objectName := path.Join(s.prefix, name)

	_, err = s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, name)
		}

		return "", fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}

	return objectName, nil
}

func (s *Storage) read(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load object %s: %w", objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path.Base(objectName))
		}

		return nil, fmt.Errorf("failed to read object %s: %w", objectName, err)
	}

	return data, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject", "NotFound":
		return true
	default:
		return false
	}
}
