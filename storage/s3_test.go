package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]time.Time
	deleted []string
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for k, ts := range f.objects {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), LastModified: aws.Time(ts)})
	}
	return out, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestObjectStoreUploadRotates(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeObjects{objects: map[string]time.Time{
		"reports/a.csv": base,
		"reports/b.csv": base.Add(time.Hour),
		"reports/c.csv": base.Add(2 * time.Hour),
	}}
	store := &ObjectStore{Client: fake, BaseURL: "https://s3.example.com/", Bucket: "bucket", Prefix: "reports/", Keep: 2, Logger: zap.NewNop()}

	link, err := store.UploadReport(context.Background(), "d.csv", []byte("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if link != "https://s3.example.com/bucket/reports/d.csv" {
		t.Fatalf("link = %q", link)
	}
	if len(fake.objects) != 2 {
		t.Fatalf("objects left = %d, want 2", len(fake.objects))
	}
	if _, ok := fake.objects["reports/d.csv"]; !ok {
		t.Fatal("newest report was rotated away")
	}
	if _, ok := fake.objects["reports/c.csv"]; !ok {
		t.Fatal("second newest report was rotated away")
	}
}

func TestObjectStoreKeepZeroDisablesRotation(t *testing.T) {
	t.Parallel()
	fake := &fakeObjects{objects: map[string]time.Time{"reports/a.csv": time.Now()}}
	store := &ObjectStore{Client: fake, Bucket: "b", Prefix: "reports/", Logger: zap.NewNop()}

	if _, err := store.UploadReport(context.Background(), "b.csv", nil); err != nil {
		t.Fatal(err)
	}
	if len(fake.deleted) != 0 {
		t.Fatalf("deleted = %v", fake.deleted)
	}
}
