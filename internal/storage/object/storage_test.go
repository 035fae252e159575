package object

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/storage"
)

type storedObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// fakeS3 answers the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]storedObject
	denyGet map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: map[string]bool{},
		objects: map[string]storedObject{},
		denyGet: map[string]bool{},
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			f.buckets[bucket] = true
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
		return
	}

	id := bucket + "/" + key

	switch r.Method {
	case http.MethodPut:
		data, err := readPayload(r)
		if err != nil {
			writeS3Error(w, r, http.StatusBadRequest, "IncompleteBody", bucket, key)
			return
		}
		f.objects[id] = storedObject{data: data, contentType: r.Header.Get("Content-Type"), modified: time.Now().UTC()}
		w.Header().Set("ETag", etag(data))
		w.WriteHeader(http.StatusOK)

	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[id]
		if !ok {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey", bucket, key)
			return
		}
		if r.Method == http.MethodGet && f.denyGet[key] {
			writeS3Error(w, r, http.StatusForbidden, "AccessDenied", bucket, key)
			return
		}

		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Header().Set("ETag", etag(obj.data))
		w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}

	case http.MethodDelete:
		delete(f.objects, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.objects[bucket+"/"+key]
	return ok
}

func (f *fakeS3) deny(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.denyGet[key] = true
}

// readPayload returns the object body, undoing aws-chunked framing when the
// client streams a signed or trailer payload.
func readPayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") &&
		!strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		return io.ReadAll(r.Body)
	}

	br := bufio.NewReader(r.Body)
	var out []byte
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}

		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}

		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)

		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code, bucket, key string) {
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w,
		`<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><BucketName>%s</BucketName><Key>%s</Key><RequestId>1</RequestId></Error>`,
		code, code, bucket, key)
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func newTestStorage(t *testing.T) (*Storage, *fakeS3) {
	t.Helper()

	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewStorage(context.Background(), Options{
		Endpoint:   strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:  "access",
		SecretKey:  "secret",
		BucketName: "artifacts",
		Region:     "us-east-1",
	}, retry.Strategy{Attempts: 1})
	require.NoError(t, err)

	return s, fake
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection refused")))
}

func TestNewStorage_CreatesBucket(t *testing.T) {
	_, fake := newTestStorage(t)

	assert.True(t, fake.buckets["artifacts"])
}

func TestStorage_WriteAndReadAndRetain(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	a, err := s.Write(ctx, model.RoleProcessed, "abc", []byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, "processed-abc.png", a.Name)
	assert.Equal(t, "upload/processed-abc.png", a.Path)
	assert.Equal(t, storage.Locator("upload", "processed-abc.png"), a.Locator)
	assert.EqualValues(t, len("payload"), a.Size)
	assert.True(t, fake.has("artifacts", "upload/processed-abc.png"))

	for i := 0; i < 2; i++ {
		data, err := s.ReadAndRetain(ctx, a.Locator)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)
	}
}

func TestStorage_ReadAndDelete(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	a, err := s.Write(ctx, model.RolePreview, "abc", []byte("preview"))
	require.NoError(t, err)

	data, err := s.ReadAndDelete(ctx, a.Locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("preview"), data)
	assert.False(t, fake.has("artifacts", "upload/preview-abc.png"))

	_, err = s.ReadAndDelete(ctx, a.Locator)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_ReadAndDeleteRemovesOnReadFailure(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	a, err := s.Write(ctx, model.RolePreview, "abc", []byte("preview"))
	require.NoError(t, err)
	fake.deny("upload/preview-abc.png")

	_, err = s.ReadAndDelete(ctx, a.Locator)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, fake.has("artifacts", "upload/preview-abc.png"))
}

func TestStorage_Delete(t *testing.T) {
	s, fake := newTestStorage(t)
	ctx := context.Background()

	a, err := s.Write(ctx, model.RoleProcessed, "abc", []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.Locator))
	assert.False(t, fake.has("artifacts", "upload/processed-abc.png"))

	assert.NoError(t, s.Delete(ctx, a.Locator))
	assert.NoError(t, s.Delete(ctx, ""))
}

func TestStorage_NotFound(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	for _, loc := range []string{
		storage.Locator("upload", "processed-missing.png"),
		"",
		"..",
		"upload/processed-x\x00.png",
	} {
		_, err := s.ReadAndRetain(ctx, loc)
		assert.ErrorIs(t, err, storage.ErrNotFound, "locator %q", loc)
	}
}
