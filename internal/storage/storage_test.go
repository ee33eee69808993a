package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), ctypes: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.ctypes[*input.Key] = *input.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func roundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	key := NewKey("photos", "Kitchen.JPG")

	if err := st.Put(ctx, key, strings.NewReader("jpeg bytes"), 10, "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "jpeg bytes" {
		t.Errorf("data = %q", data)
	}

	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := st.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, "text/plain"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("put outside root err = %v, want ErrInvalidKey", err)
	}
}

func TestS3Store(t *testing.T) {
	mock := newMockS3()
	st := &S3Store{client: mock, bucket: "uploads"}
	roundTrip(t, st)

	st.Put(context.Background(), "leases/a.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	if got := mock.ctypes["leases/a.pdf"]; got != "application/pdf" {
		t.Errorf("content type = %q", got)
	}

	mock.putErr = errors.New("503 slow down")
	if err := st.Put(context.Background(), "leases/b.pdf", strings.NewReader(""), 0, "application/pdf"); err == nil {
		t.Error("expected put error")
	}
}

func TestDiskStore(t *testing.T) {
	st, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	roundTrip(t, st)

	if err := st.Delete(context.Background(), "photos/missing.jpg"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestNewKey(t *testing.T) {
	a := NewKey("photos", "IMG_0001.HEIC")
	b := NewKey("photos", "IMG_0001.HEIC")
	if a == b {
		t.Error("keys should be unique")
	}
	if !strings.HasPrefix(a, "photos/") || !strings.HasSuffix(a, ".heic") {
		t.Errorf("key = %q", a)
	}
}

func TestInFolder(t *testing.T) {
	tests := map[string]bool{
		NewKey("photos", "a.jpg"):           true,
		"photos/abc.png":                    true,
		"":                                  false,
		"photos":                            false,
		"photos/":                           false,
		"photos/../backups/tenantry.db.enc": false,
		"photos/./abc.png":                  false,
		"photos//abc.png":                   false,
		"photos/nested/abc.png":             false,
		"leases/abc.pdf":                    false,
		"/photos/abc.png":                   false,
	}
	for key, want := range tests {
		if got := InFolder("photos", key); got != want {
			t.Errorf("InFolder(photos, %q) = %v, want %v", key, got, want)
		}
	}
}

func TestNewChoosesBackend(t *testing.T) {
	st, err := New(S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s", Region: "us-east-1"}, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := st.(*S3Store); !ok {
		t.Errorf("store = %T, want *S3Store", st)
	}

	st, err = New(S3Config{Bucket: "b"}, t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := st.(*DiskStore); !ok {
		t.Errorf("store = %T, want *DiskStore", st)
	}
}
