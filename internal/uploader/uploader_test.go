package uploader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/xtxerr/netpulse/internal/awsx"
)

// fakeStore simulates remote storage: by default it returns the real
// MD5 of the uploaded body as a quoted ETag, like S3 does for
// single-part uploads.
type fakeStore struct {
	puts     []string
	failKeys map[string]error
	badETag  string // when set, returned for every put
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, body io.Reader) (string, error) {
	if err := f.failKeys[key]; err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.puts = append(f.puts, key)
	if f.badETag != "" {
		return f.badETag, nil
	}
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

// staticConnect returns a ConnectFunc handing out the given store and
// recording whether it was called.
func staticConnect(store ObjectStore, called *bool) ConnectFunc {
	return func(ctx context.Context) (ObjectStore, AppConfig, error) {
		*called = true
		return store, AppConfig{Bucket: "test-bucket"}, nil
	}
}

// mkArchive creates an archive file under root with partition subpath.
func mkArchive(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("parquet-bytes-"+rel), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunNoArchivesSkipsAuthentication(t *testing.T) {
	var called bool
	p := NewWithConnect(t.TempDir(), staticConnect(&fakeStore{}, &called))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("connect must not be called when there is nothing to upload")
	}
}

func TestRunMissingRootIsNoop(t *testing.T) {
	var called bool
	p := NewWithConnect(filepath.Join(t.TempDir(), "missing"), staticConnect(&fakeStore{}, &called))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("connect must not be called for a missing root")
	}
}

func TestRunUploadsAndDeletes(t *testing.T) {
	root := t.TempDir()
	path := mkArchive(t, root, "location=loc/year=2025/month=01/day=15/speedtest_001.parquet")

	store := &fakeStore{}
	var called bool
	p := NewWithConnect(root, staticConnect(store, &called))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !called {
		t.Error("expected connect to be called once")
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(store.puts))
	}
	want := "results/location=loc/year=2025/month=01/day=15/speedtest_001.parquet"
	if store.puts[0] != want {
		t.Errorf("expected key %s, got %s", want, store.puts[0])
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected local archive deleted after verified upload")
	}
}

func TestRunChecksumMismatchPreservesFile(t *testing.T) {
	root := t.TempDir()
	path := mkArchive(t, root, "location=loc/year=2025/month=01/day=15/speedtest_001.parquet")

	store := &fakeStore{badETag: `"deadbeefdeadbeefdeadbeefdeadbeef"`}
	var called bool
	p := NewWithConnect(root, staticConnect(store, &called))

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected Run to report the failed upload")
	}

	if _, err := os.Stat(path); err != nil {
		t.Error("expected local archive preserved on checksum mismatch")
	}
}

func TestRunPutErrorPreservesFileAndContinues(t *testing.T) {
	root := t.TempDir()
	bad := mkArchive(t, root, "location=loc/year=2025/month=01/day=14/speedtest_001.parquet")
	good := mkArchive(t, root, "location=loc/year=2025/month=01/day=15/speedtest_001.parquet")

	badKey := "results/location=loc/year=2025/month=01/day=14/speedtest_001.parquet"
	store := &fakeStore{failKeys: map[string]error{badKey: fmt.Errorf("connection reset")}}
	var called bool
	p := NewWithConnect(root, staticConnect(store, &called))

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected Run to report the failed upload")
	}

	if _, err := os.Stat(bad); err != nil {
		t.Error("expected failed archive preserved")
	}
	if _, err := os.Stat(good); !os.IsNotExist(err) {
		t.Error("expected later archive still uploaded and deleted")
	}
	if len(store.puts) != 1 {
		t.Errorf("expected the second file to be put, got %d puts", len(store.puts))
	}
}

func TestRunConnectFailure(t *testing.T) {
	root := t.TempDir()
	path := mkArchive(t, root, "location=loc/year=2025/month=01/day=15/speedtest_001.parquet")

	p := NewWithConnect(root, func(ctx context.Context) (ObjectStore, AppConfig, error) {
		return nil, AppConfig{}, fmt.Errorf("no credentials")
	})

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail when authentication fails")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("expected archive preserved when authentication fails")
	}
}

func TestObjectKey(t *testing.T) {
	root := filepath.Join("some", "uploads")
	path := filepath.Join(root, "location=abc", "year=2026", "month=02", "day=09", "speedtest_001.parquet")

	key, err := ObjectKey(path, root)
	if err != nil {
		t.Fatalf("ObjectKey: %v", err)
	}

	want := "results/location=abc/year=2026/month=02/day=09/speedtest_001.parquet"
	if key != want {
		t.Errorf("expected %s, got %s", want, key)
	}
}

func TestObjectKeyOutsideRoot(t *testing.T) {
	if _, err := ObjectKey(filepath.Join("elsewhere", "a.parquet"), "uploads"); err == nil {
		t.Error("expected error for path outside upload root")
	}
}

func TestChecksumMatch(t *testing.T) {
	if !ChecksumMatch("abc123", `"abc123"`) {
		t.Error("expected quoted etag to match")
	}
	if !ChecksumMatch("abc123", "abc123") {
		t.Error("expected bare etag to match")
	}
	if ChecksumMatch("abc123", `"def456"`) {
		t.Error("expected mismatch to fail")
	}
}

func TestFileMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.parquet")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FileMD5(path)
	if err != nil {
		t.Fatalf("FileMD5: %v", err)
	}
	// md5("hello")
	if got != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("unexpected digest %s", got)
	}
}

// fakeParamAPI backs a ParamStore with a fixed parameter map.
type fakeParamAPI struct {
	params map[string]string
}

func (f *fakeParamAPI) GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	v, ok := f.params[name]
	if !ok {
		return nil, fmt.Errorf("parameter not found: %s", name)
	}
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{Name: in.Name, Value: aws.String(v)},
	}, nil
}

func (f *fakeParamAPI) GetParameters(ctx context.Context, in *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.params[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, types.Parameter{
			Name:  aws.String(name),
			Value: aws.String(v),
		})
	}
	return out, nil
}

func (f *fakeParamAPI) GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	return &ssm.GetParametersByPathOutput{}, nil
}

func TestReadAppConfigRequiresOnlyBucket(t *testing.T) {
	store := awsx.NewParamStoreWithClient(&fakeParamAPI{params: map[string]string{
		"/prod/netpulse/app/s3_bucket_name": "results-bucket",
	}})

	app, err := readAppConfig(context.Background(), store, "/prod/netpulse/app")
	if err != nil {
		t.Fatalf("readAppConfig: %v", err)
	}
	if app.Bucket != "results-bucket" {
		t.Errorf("expected bucket results-bucket, got %q", app.Bucket)
	}
	if app.Location != "" {
		t.Errorf("expected empty location when the parameter is absent, got %q", app.Location)
	}
}

func TestReadAppConfigWithLocation(t *testing.T) {
	store := awsx.NewParamStoreWithClient(&fakeParamAPI{params: map[string]string{
		"/prod/netpulse/app/s3_bucket_name":          "results-bucket",
		"/prod/netpulse/app/speedtest_location_uuid": "6f1f9f0a-6f63-4f51-9f3e-1a2b3c4d5e6f",
	}})

	app, err := readAppConfig(context.Background(), store, "/prod/netpulse/app")
	if err != nil {
		t.Fatalf("readAppConfig: %v", err)
	}
	if app.Location != "6f1f9f0a-6f63-4f51-9f3e-1a2b3c4d5e6f" {
		t.Errorf("expected published location, got %q", app.Location)
	}
}

func TestReadAppConfigMissingBucket(t *testing.T) {
	store := awsx.NewParamStoreWithClient(&fakeParamAPI{params: map[string]string{
		"/prod/netpulse/app/speedtest_location_uuid": "6f1f9f0a-6f63-4f51-9f3e-1a2b3c4d5e6f",
	}})

	if _, err := readAppConfig(context.Background(), store, "/prod/netpulse/app"); err == nil {
		t.Fatal("expected error when the bucket parameter is missing")
	}
}

func TestFindArchivesSortedRecursive(t *testing.T) {
	root := t.TempDir()
	mkArchive(t, root, "location=loc/year=2025/month=01/day=15/speedtest_002.parquet")
	mkArchive(t, root, "location=loc/year=2025/month=01/day=14/speedtest_001.parquet")
	// Non-archive files are ignored.
	mkArchive(t, root, "location=loc/year=2025/month=01/day=14/notes.txt")

	files, err := FindArchives(root)
	if err != nil {
		t.Fatalf("FindArchives: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 archives, got %d", len(files))
	}
	if !(files[0] < files[1]) {
		t.Error("expected sorted output")
	}
}
