// Package awsx wraps the AWS collaborators: STS role assumption, the
// SSM parameter store, and S3 object puts. Clients are hidden behind
// narrow interfaces so tests can inject fakes.
package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSAPI is the subset of the STS client used for role assumption.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// BaseConfig loads the ambient AWS configuration for a region.
func BaseConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// AssumeRole assumes an IAM role once and returns a config carrying
// the temporary credentials. Callers reuse the returned config for
// every call in one pipeline run.
func AssumeRole(ctx context.Context, base aws.Config, roleARN, sessionName string) (aws.Config, error) {
	return AssumeRoleWithClient(ctx, sts.NewFromConfig(base), base, roleARN, sessionName)
}

// AssumeRoleWithClient is AssumeRole with an injectable STS client.
func AssumeRoleWithClient(ctx context.Context, api STSAPI, base aws.Config, roleARN, sessionName string) (aws.Config, error) {
	out, err := api.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(sessionName),
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("assume role %s: %w", roleARN, err)
	}

	creds := out.Credentials
	cfg := base.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		aws.ToString(creds.AccessKeyId),
		aws.ToString(creds.SecretAccessKey),
		aws.ToString(creds.SessionToken),
	)
	return cfg, nil
}
