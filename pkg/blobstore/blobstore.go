package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/busify/busify/pkg/util"
)

const LostItemsPrefix = "lost_items"

type Uploader interface {
	// Upload stores the object and returns a URL it can be fetched from
	Upload(ctx context.Context, objectName string, contentType string, body io.Reader) (string, error)
}

// ObjectName builds lost_items/<unix millis>_<file name> with any directory components stripped
func ObjectName(prefix string, now time.Time, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}

	return fmt.Sprintf("%s/%d_%s", prefix, now.UnixMilli(), util.TrimString(base, 128))
}

func DownloadURL(bucket string, objectName string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", bucket, url.PathEscape(objectName))
}

type FirebaseStorage struct {
	BucketName string

	bucket *gcs.BucketHandle
}

func NewFirebaseStorage(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseStorage, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, err
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, err
	}

	return &FirebaseStorage{BucketName: bucketName, bucket: bucket}, nil
}

func (s *FirebaseStorage) Upload(ctx context.Context, objectName string, contentType string, body io.Reader) (string, error) {
	writer := s.bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, body); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	return DownloadURL(s.BucketName, objectName), nil
}

// MemoryStorage keeps uploads in process for local development
type MemoryStorage struct {
	mutex   sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: map[string][]byte{}}
}

func (s *MemoryStorage) Upload(_ context.Context, objectName string, _ string, body io.Reader) (string, error) {
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, body); err != nil {
		return "", err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.objects[objectName] = buffer.Bytes()

	return "memory://" + objectName, nil
}

func (s *MemoryStorage) Object(objectName string) ([]byte, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	object, ok := s.objects[objectName]

	return object, ok
}
