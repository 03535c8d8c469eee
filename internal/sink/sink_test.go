package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestCleanName(t *testing.T) {
	good := map[string]string{"a": "a", "c/j/k": "c/j/k", "/c/": "c"}
	for in, want := range good {
		got, err := CleanName(in)
		if err != nil || got != want {
			t.Errorf("CleanName(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "/", "../x", "a/../b", "a//b", "./a"} {
		if _, err := CleanName(in); err == nil {
			t.Errorf("CleanName(%q) should fail", in)
		}
	}
}

func TestLocalSink(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	if ok, _ := l.Exists(ctx, "c"); ok {
		t.Fatal("c should not exist yet")
	}
	if err := l.Mkdir(ctx, "c"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := l.WriteFile(ctx, "c/h", []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "c", "h"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("content = %q, %v", data, err)
	}

	if err := l.WriteFile(ctx, "c/h", []byte("again")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(root, "c", "h"))
	if string(data) != "again" {
		t.Errorf("content after overwrite = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "c"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}

	if ok, _ := l.Exists(ctx, "c"); !ok {
		t.Error("c should exist")
	}
	if err := l.Remove(ctx, "c"); err != nil {
		t.Fatalf("Remove dir: %v", err)
	}
	if ok, _ := l.Exists(ctx, "c"); ok {
		t.Error("c should be gone")
	}
}

func TestLocalSinkRemoveSymlink(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	target := filepath.Join(root, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	l, _ := NewLocal(root)
	if err := l.Remove(ctx, "link"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "keep")); err != nil {
		t.Errorf("symlink target content removed: %v", err)
	}
}

func TestLocalSinkMkdirNeedsParent(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	if err := l.Mkdir(context.Background(), "a/b"); err == nil {
		t.Error("Mkdir without parent should fail")
	}
}

func TestNewLocalNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	os.WriteFile(f, nil, 0644)
	if _, err := NewLocal(f); err == nil {
		t.Error("expected error for file root")
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if in.MaxKeys != nil && int(*in.MaxKeys) < len(keys) {
		keys = keys[:*in.MaxKeys]
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	b := newS3WithClient(fake, "bucket", "/backups/")

	if err := b.Mkdir(ctx, "c"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := b.WriteFile(ctx, "c/h", []byte("h")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := b.WriteFile(ctx, "a", []byte("a")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if string(fake.objects["backups/c/h"]) != "h" {
		t.Errorf("objects = %v", fake.objects)
	}
	if _, ok := fake.objects["backups/c/"]; !ok {
		t.Error("directory marker missing")
	}

	for name, want := range map[string]bool{"c": true, "a": true, "c/h": true, "x": false} {
		got, err := b.Exists(ctx, name)
		if err != nil || got != want {
			t.Errorf("Exists(%q) = %v, %v; want %v", name, got, err, want)
		}
	}

	if err := b.Remove(ctx, "c"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(fake.objects) != 1 {
		t.Errorf("objects after Remove = %v", fake.objects)
	}

	if got := b.Location("a"); got != "s3://bucket/backups/a" {
		t.Errorf("Location = %q", got)
	}
}
