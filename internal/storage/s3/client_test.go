package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Mayank-software/dropboxfs/pkg/errors"
)

// fakeAPI is an in-memory object store implementing the api interface.
type fakeAPI struct {
	objects map[string][]byte
	etags   map[string]string
	nextTag int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		objects: make(map[string][]byte),
		etags:   make(map[string]string),
	}
}

func (f *fakeAPI) put(key string, data []byte) string {
	f.nextTag++
	etag := fmt.Sprintf("etag-%d", f.nextTag)
	f.objects[key] = data
	f.etags[key] = etag
	return etag
}

type fakeAPIError struct{ code string }

func (e *fakeAPIError) Error() string                 { return e.code }
func (e *fakeAPIError) ErrorCode() string             { return e.code }
func (e *fakeAPIError) ErrorMessage() string          { return e.code }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func (f *fakeAPI) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &fakeAPIError{code: "NotFound"}
	}
	return &awss3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(`"` + f.etags[key] + `"`),
	}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
		ETag: aws.String(`"` + f.etags[key] + `"`),
	}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if in.IfMatch != nil {
		want := strings.Trim(aws.ToString(in.IfMatch), `"`)
		if f.etags[key] != want {
			return nil, &fakeAPIError{code: "PreconditionFailed"}
		}
	}
	if in.IfNoneMatch != nil {
		if _, exists := f.objects[key]; exists {
			return nil, &fakeAPIError{code: "PreconditionFailed"}
		}
	}
	var data []byte
	if in.Body != nil {
		data, _ = io.ReadAll(in.Body)
	}
	etag := f.put(key, data)
	return &awss3.PutObjectOutput{ETag: aws.String(`"` + etag + `"`)}, nil
}

func (f *fakeAPI) CopyObject(_ context.Context, in *awss3.CopyObjectInput, _ ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error) {
	src := aws.ToString(in.CopySource)
	src = src[strings.Index(src, "/")+1:]
	data, ok := f.objects[src]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	f.put(aws.ToString(in.Key), data)
	return &awss3.CopyObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	delete(f.objects, key)
	delete(f.etags, key)
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seenPrefixes := make(map[string]bool)
	count := 0
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" && strings.Contains(rest, delim) {
			cp := prefix + rest[:strings.Index(rest, delim)+1]
			if !seenPrefixes[cp] {
				seenPrefixes[cp] = true
				out.CommonPrefixes = append(out.CommonPrefixes, s3types.CommonPrefix{Prefix: aws.String(cp)})
			}
			continue
		}
		out.Contents = append(out.Contents, s3types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k]))),
			ETag: aws.String(`"` + f.etags[k] + `"`),
		})
		count++
		if in.MaxKeys != nil && int32(count) >= aws.ToInt32(in.MaxKeys) {
			break
		}
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents) + len(out.CommonPrefixes)))
	return out, nil
}

func newTestClient(fake *fakeAPI) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Client{api: fake, bucket: "test-bucket", logger: logger}
}

func TestGetMetadataFile(t *testing.T) {
	fake := newFakeAPI()
	fake.put("docs/a.txt", []byte("hello"))
	client := newTestClient(fake)

	meta, err := client.GetMetadata(context.Background(), "/docs/a.txt")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.IsDir || meta.Size != 5 || meta.Name != "a.txt" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Rev == "" {
		t.Error("expected ETag as revision")
	}
}

func TestGetMetadataRootAndFolder(t *testing.T) {
	fake := newFakeAPI()
	fake.put("docs/a.txt", []byte("x"))
	client := newTestClient(fake)

	root, err := client.GetMetadata(context.Background(), "")
	if err != nil || !root.IsDir {
		t.Fatalf("root metadata = %+v, err %v", root, err)
	}

	// Implicit folder from the object prefix.
	dir, err := client.GetMetadata(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("GetMetadata(/docs) failed: %v", err)
	}
	if !dir.IsDir {
		t.Error("expected /docs to be a folder")
	}

	_, err = client.GetMetadata(context.Background(), "/nope")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestListFolder(t *testing.T) {
	fake := newFakeAPI()
	fake.put("a.txt", []byte("1"))
	fake.put("docs/b.txt", []byte("22"))
	fake.put("docs/sub/c.txt", []byte("333"))
	client := newTestClient(fake)

	entries, err := client.ListFolder(context.Background(), "")
	if err != nil {
		t.Fatalf("ListFolder failed: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = e.IsDir
	}
	if len(entries) != 2 {
		t.Fatalf("root entries = %d, want 2 (a.txt, docs)", len(entries))
	}
	if isDir, ok := names["docs"]; !ok || !isDir {
		t.Error("expected folder entry docs")
	}
	if isDir, ok := names["a.txt"]; !ok || isDir {
		t.Error("expected file entry a.txt")
	}

	entries, err = client.ListFolder(context.Background(), "/docs")
	if err != nil {
		t.Fatalf("ListFolder(/docs) failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("docs entries = %d, want 2 (b.txt, sub)", len(entries))
	}
}

func TestDownloadUploadRoundTrip(t *testing.T) {
	fake := newFakeAPI()
	client := newTestClient(fake)
	ctx := context.Background()

	rev, err := client.Upload(ctx, "/f.txt", []byte("v1"), "")
	if err != nil {
		t.Fatalf("initial upload failed: %v", err)
	}

	data, gotRev, err := client.Download(ctx, "/f.txt")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "v1" || gotRev != rev {
		t.Errorf("downloaded %q rev %q, want v1 rev %q", data, gotRev, rev)
	}

	if _, err := client.Upload(ctx, "/f.txt", []byte("v2"), rev); err != nil {
		t.Fatalf("conditional upload failed: %v", err)
	}
}

func TestUploadConflicts(t *testing.T) {
	fake := newFakeAPI()
	client := newTestClient(fake)
	ctx := context.Background()

	rev, err := client.Upload(ctx, "/f.txt", []byte("v1"), "")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	// Unconditional add over an existing object.
	if _, err := client.Upload(ctx, "/f.txt", []byte("v2"), ""); !errors.IsConflict(err) {
		t.Errorf("expected conflict for add over existing object, got %v", err)
	}

	// Stale revision.
	if _, err := client.Upload(ctx, "/f.txt", []byte("v2"), rev+"stale"); !errors.IsConflict(err) {
		t.Errorf("expected conflict for stale revision, got %v", err)
	}

	if _, err := client.Upload(ctx, "/f.txt", []byte("v2"), rev); err != nil {
		t.Errorf("fresh revision should succeed: %v", err)
	}
}

func TestDownloadMissing(t *testing.T) {
	client := newTestClient(newFakeAPI())
	_, _, err := client.Download(context.Background(), "/missing")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestMoveFile(t *testing.T) {
	fake := newFakeAPI()
	fake.put("a.txt", []byte("data"))
	client := newTestClient(fake)

	if err := client.Move(context.Background(), "/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, ok := fake.objects["a.txt"]; ok {
		t.Error("source should be gone after move")
	}
	if string(fake.objects["b.txt"]) != "data" {
		t.Error("destination missing after move")
	}
}

func TestCopyFolderRecursive(t *testing.T) {
	fake := newFakeAPI()
	fake.put("dir/a.txt", []byte("1"))
	fake.put("dir/sub/b.txt", []byte("2"))
	client := newTestClient(fake)

	if err := client.Copy(context.Background(), "/dir", "/copy"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if string(fake.objects["copy/a.txt"]) != "1" || string(fake.objects["copy/sub/b.txt"]) != "2" {
		t.Errorf("folder copy incomplete: %v", keysOf(fake.objects))
	}
}

func TestDeleteFolderRecursive(t *testing.T) {
	fake := newFakeAPI()
	fake.put("dir/", nil)
	fake.put("dir/a.txt", []byte("1"))
	fake.put("other.txt", []byte("2"))
	client := newTestClient(fake)

	if err := client.Delete(context.Background(), "/dir"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(fake.objects) != 1 {
		t.Errorf("remaining objects = %v, want only other.txt", keysOf(fake.objects))
	}
}

func TestCreateFolderWritesMarker(t *testing.T) {
	fake := newFakeAPI()
	client := newTestClient(fake)

	if err := client.CreateFolder(context.Background(), "/newdir"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if _, ok := fake.objects["newdir/"]; !ok {
		t.Error("expected folder marker object")
	}

	meta, err := client.GetMetadata(context.Background(), "/newdir")
	if err != nil || !meta.IsDir {
		t.Errorf("folder metadata = %+v, err %v", meta, err)
	}
}

func keysOf(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
