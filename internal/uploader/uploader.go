// Package uploader ships local archive files to remote object storage
// with checksum-gated deletion.
//
// Each run discovers unsent archives, authenticates once, uploads each
// file independently, and deletes a local file only when the
// remote-reported checksum matches the local digest. A failed file is
// kept for retry and never stops the rest of the batch.
package uploader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xtxerr/netpulse/config"
	"github.com/xtxerr/netpulse/internal/awsx"
	"github.com/xtxerr/netpulse/internal/loader"
	"github.com/xtxerr/netpulse/internal/logging"
)

var log = logging.Component("uploader")

// ObjectStore puts content into remote storage and reports the
// remote-computed content identifier.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader) (string, error)
}

// AppConfig is the remote application configuration fetched once per
// pipeline run.
type AppConfig struct {
	// Bucket is the destination bucket name.
	Bucket string

	// Location is the canonical location identifier, if published.
	Location string
}

// ConnectFunc authenticates and returns a store plus remote config.
// It is called at most once per run, and not at all when there is
// nothing to upload.
type ConnectFunc func(ctx context.Context) (ObjectStore, AppConfig, error)

// Pipeline uploads archive files from a local root.
type Pipeline struct {
	root    string
	connect ConnectFunc
}

// New creates a pipeline backed by AWS (STS assume-role, SSM config,
// S3 puts).
func New(cfg *loader.Config) *Pipeline {
	return &Pipeline{root: cfg.UploadDir, connect: awsConnect(cfg)}
}

// NewWithConnect creates a pipeline with an injected connector.
func NewWithConnect(root string, connect ConnectFunc) *Pipeline {
	return &Pipeline{root: root, connect: connect}
}

// Run uploads every discovered archive file. Returns nil when all
// files (or no files) were handled; an error when authentication
// failed or at least one file could not be shipped. Per-file failures
// never abort the remaining files.
func (p *Pipeline) Run(ctx context.Context) error {
	files, err := FindArchives(p.root)
	if err != nil {
		return fmt.Errorf("scan upload root: %w", err)
	}
	if len(files) == 0 {
		log.Debug("no archive files to upload")
		return nil
	}

	log.Info("found archive files to upload", "count", len(files))

	store, app, err := p.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect remote storage: %w", err)
	}

	failed := 0
	for _, file := range files {
		if err := p.uploadOne(ctx, store, app.Bucket, file); err != nil {
			log.Error("upload failed, keeping local file", "path", file, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func (p *Pipeline) uploadOne(ctx context.Context, store ObjectStore, bucket, path string) error {
	localMD5, err := FileMD5(path)
	if err != nil {
		return err
	}

	key, err := ObjectKey(path, p.root)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	etag, err := store.Put(ctx, bucket, key, f)
	f.Close()
	if err != nil {
		return err
	}

	if !ChecksumMatch(localMD5, etag) {
		return fmt.Errorf("checksum mismatch for %s: local %s, remote %s", path, localMD5, etag)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete after verified upload: %w", err)
	}

	log.Info("uploaded and deleted", "path", path, "bucket", bucket, "key", key)
	return nil
}

// FindArchives returns every archive file under root, sorted.
func FindArchives(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == config.ArchiveExt {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// FileMD5 returns the hex MD5 digest of a file, read in chunks.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, config.ChecksumChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ObjectKey maps a local archive path to its remote key: the upload
// root is replaced by the fixed remote prefix, partition segments are
// preserved verbatim.
func ObjectKey(path, uploadRoot string) (string, error) {
	rel, err := filepath.Rel(uploadRoot, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", path, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("archive %s is outside upload root %s", path, uploadRoot)
	}
	return config.RemoteKeyPrefix + "/" + filepath.ToSlash(rel), nil
}

// ChecksumMatch compares a local digest to the remote identifier,
// stripping the quoting S3 wraps around ETags.
func ChecksumMatch(localMD5, etag string) bool {
	return localMD5 == strings.Trim(etag, `"`)
}

// awsConnect builds the real AWS connector: role ARN from the
// parameter store, one STS assume-role, app config, S3 client.
func awsConnect(cfg *loader.Config) ConnectFunc {
	return func(ctx context.Context) (ObjectStore, AppConfig, error) {
		prefix, err := cfg.SSMPrefix()
		if err != nil {
			return nil, AppConfig{}, err
		}

		base, err := awsx.BaseConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, AppConfig{}, err
		}

		roleParam, err := cfg.RoleARNParameterName()
		if err != nil {
			return nil, AppConfig{}, err
		}

		params := awsx.NewParamStore(base)
		roleARN, err := params.GetParameter(ctx, roleParam)
		if err != nil {
			return nil, AppConfig{}, fmt.Errorf("get upload role ARN: %w", err)
		}

		assumed, err := awsx.AssumeRole(ctx, base, roleARN, cfg.AWS.RoleSessionName)
		if err != nil {
			return nil, AppConfig{}, err
		}

		app, err := readAppConfig(ctx, awsx.NewParamStore(assumed), prefix)
		if err != nil {
			return nil, AppConfig{}, err
		}

		return s3Store{api: awsx.NewS3Client(assumed)}, app, nil
	}
}

// readAppConfig reads the remote application configuration. Only the
// bucket is required; a deployment that never published a location
// identifier still uploads, since archive paths already carry the
// locally configured location.
func readAppConfig(ctx context.Context, params *awsx.ParamStore, prefix string) (AppConfig, error) {
	values, err := params.GetParameters(ctx, prefix+"/"+config.BucketParameter)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read app config: %w", err)
	}

	app := AppConfig{Bucket: values[config.BucketParameter]}
	if app.Bucket == "" {
		return AppConfig{}, fmt.Errorf("app config has no %s", config.BucketParameter)
	}

	if loc, err := params.GetParameter(ctx, prefix+"/"+config.LocationParameter); err == nil {
		app.Location = loc
	} else {
		log.Debug("location parameter not published", "name", config.LocationParameter, "error", err)
	}

	return app, nil
}

// s3Store adapts the S3 client to ObjectStore.
type s3Store struct {
	api awsx.ObjectPutAPI
}

func (s s3Store) Put(ctx context.Context, bucket, key string, body io.Reader) (string, error) {
	return awsx.PutObject(ctx, s.api, bucket, key, body)
}
