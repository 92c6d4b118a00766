package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var localRef = regexp.MustCompile(`^/uploads/[a-z]{10}-cabin\.jpg$`)

func TestAllowed(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"image/jpg", true},
		{"IMAGE/JPEG", true},
		{"image/jpeg; charset=binary", true},
		{"image/gif", false},
		{"application/pdf", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := Allowed(tc.contentType); got != tc.want {
			t.Errorf("Allowed(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

func TestLocalSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	ref, err := l.Save(ctx, "cabin.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !localRef.MatchString(ref) {
		t.Fatalf("unexpected ref %q", ref)
	}

	path := filepath.Join(dir, strings.TrimPrefix(ref, LocalPrefix))
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("stored file = %q, %v", data, err)
	}

	if err := l.Remove(ctx, ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat err = %v", err)
	}
	// removing twice or removing foreign refs is not an error
	if err := l.Remove(ctx, ref); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if err := l.Remove(ctx, "https://example.com/x.png"); err != nil {
		t.Fatalf("foreign Remove: %v", err)
	}
}

func TestLocalRejectsUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if _, err := l.Save(context.Background(), "doc.pdf", "application/pdf", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("nothing should be written, found %d entries", len(entries))
	}
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"cabin.jpg":          "cabin.jpg",
		"../../etc/passwd":   "passwd",
		`C:\photos\lake.png`: "lake.png",
		"my lake house.png":  "my_lake_house.png",
		"":                   "photo",
	}
	for in, want := range tests {
		if got := cleanName(in); got != want {
			t.Errorf("cleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeS3 struct {
	puts    map[string][]byte
	deleted []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3SaveAndRemove(t *testing.T) {
	fake := &fakeS3{}
	u := newS3(fake, S3Config{Bucket: "photos", Region: "eu-west-1"})
	ctx := context.Background()

	ref, err := u.Save(ctx, "cabin.jpg", "image/jpeg", bytes.NewReader([]byte("jpeg")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	prefix := "https://photos.s3.eu-west-1.amazonaws.com/"
	if !strings.HasPrefix(ref, prefix) {
		t.Fatalf("unexpected ref %q", ref)
	}
	key := strings.TrimPrefix(ref, prefix)
	if string(fake.puts[key]) != "jpeg" {
		t.Fatalf("object not uploaded under %q: %v", key, fake.puts)
	}

	if err := u.Remove(ctx, ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := u.Remove(ctx, "/uploads/local.png"); err != nil {
		t.Fatalf("foreign Remove: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != key {
		t.Fatalf("unexpected deletes %v", fake.deleted)
	}
}

func TestPublicBase(t *testing.T) {
	tests := []struct {
		cfg  S3Config
		want string
	}{
		{S3Config{Bucket: "b", Region: "us-east-1"}, "https://b.s3.us-east-1.amazonaws.com"},
		{S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b"},
		{S3Config{Bucket: "b", PublicURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
	}
	for _, tc := range tests {
		if got := publicBase(tc.cfg); got != tc.want {
			t.Errorf("publicBase(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}
