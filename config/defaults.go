// Package config provides configuration defaults and utilities
// for the netpulse application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

// =============================================================================
// Loop Defaults
// =============================================================================

const (
	// DefaultSleepSeconds is the pause between measurement cycles.
	// Must stay above one second: row filenames have second granularity.
	// Override via config: sleep_seconds, or env: SLEEP_SECONDS
	DefaultSleepSeconds = 5
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultResultDir is the root of the partitioned row store.
	// Override via config: result_dir
	DefaultResultDir = "results"

	// DefaultUploadDir is the root of the local columnar store awaiting upload.
	// Override via config: upload_dir
	DefaultUploadDir = "uploads"

	// RowExt is the file extension of row-store record files.
	RowExt = ".csv"

	// ArchiveExt is the file extension of columnar archive files.
	ArchiveExt = ".parquet"

	// ArchivePrefix is the filename prefix of columnar archive files.
	ArchivePrefix = "speedtest"

	// ArchiveNumberWidth is the minimum zero-padded width of archive
	// sequence numbers. Numbers beyond 999 extend naturally.
	ArchiveNumberWidth = 3
)

// =============================================================================
// Remote Storage Defaults
// =============================================================================

const (
	// DefaultAWSRegion is the region for STS, SSM and S3 calls.
	// Override via config: aws.region, or env: AWS_REGION
	DefaultAWSRegion = "eu-west-2"

	// DefaultRoleSessionName is the STS session name used for uploads.
	// Override via config: aws.role_session_name
	DefaultRoleSessionName = "netpulse-upload"

	// RemoteKeyPrefix replaces the local upload root in S3 object keys.
	RemoteKeyPrefix = "results"

	// RoleARNParameter is the SSM parameter (relative to the app prefix)
	// holding the IAM role to assume for uploads. Missing parameter is a
	// fatal configuration error at first use.
	RoleARNParameter = "raspberry-pi-role-arn"

	// BucketParameter is the SSM parameter (relative to the app prefix)
	// holding the destination bucket name.
	BucketParameter = "s3_bucket_name"

	// LocationParameter is the SSM parameter (relative to the app prefix)
	// holding the canonical location identifier.
	LocationParameter = "speedtest_location_uuid"

	// ChecksumChunkSize is the read chunk size for local digests.
	ChecksumChunkSize = 8192
)
