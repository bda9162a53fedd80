// Package sitewise is the read-only handle to the AWS IoT SiteWise telemetry
// store: asset models, assets and their hierarchy links, property metadata,
// and current or historical property values.
//
// A Client is created once at startup and shared by every tool invocation.
// It holds no mutable state after New returns.
package sitewise

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iotsitewise"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	defaultRegion      = "us-east-1"
	defaultConcurrency = 8
	assetPageSize      = 100
	modelPageSize      = 50
)

// api is the subset of the SiteWise client used here.
type api interface {
	iotsitewise.ListAssetModelsAPIClient
	iotsitewise.ListAssetsAPIClient
	iotsitewise.ListAssociatedAssetsAPIClient
	DescribeAsset(ctx context.Context, in *iotsitewise.DescribeAssetInput, optFns ...func(*iotsitewise.Options)) (*iotsitewise.DescribeAssetOutput, error)
	GetAssetPropertyValue(ctx context.Context, in *iotsitewise.GetAssetPropertyValueInput, optFns ...func(*iotsitewise.Options)) (*iotsitewise.GetAssetPropertyValueOutput, error)
	GetAssetPropertyValueHistory(ctx context.Context, in *iotsitewise.GetAssetPropertyValueHistoryInput, optFns ...func(*iotsitewise.Options)) (*iotsitewise.GetAssetPropertyValueHistoryOutput, error)
}

type identityAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Config holds client initialization parameters.
type Config struct {
	Region          string // empty = SDK default chain, then us-east-1
	Profile         string // shared config profile
	Endpoint        string // SiteWise endpoint override (local emulators, VPC endpoints)
	AccessKeyID     string // static credentials; empty = SDK default chain
	SecretAccessKey string
	SessionToken    string
	VerifyIdentity  bool // call STS GetCallerIdentity before returning
	Concurrency     int  // parallel per-asset lookups (0 = default 8)
}

// Client is the long-lived SiteWise handle.
type Client struct {
	api         api
	sts         identityAPI
	region      string
	concurrency int
}

// Identity is the caller identity the client authenticates as.
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
	Region  string `json:"region"`
}

// New loads AWS configuration and builds the client. With VerifyIdentity set,
// credentials are checked against STS so that a misconfigured process fails
// here instead of on the first tool call.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		slog.Info("using static aws credentials from configuration", "session_token", cfg.SessionToken != "")
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrUnavailable, err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}

	swClient := iotsitewise.NewFromConfig(awsCfg, func(o *iotsitewise.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	c := newClient(swClient, sts.NewFromConfig(awsCfg), awsCfg.Region, cfg.Concurrency)

	if cfg.VerifyIdentity {
		id, err := c.Identity(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: verify credentials: %v", ErrUnavailable, err)
		}
		slog.Info("aws identity verified", "arn", id.ARN, "account", id.Account, "region", id.Region)
	}

	return c, nil
}

func newClient(a api, s identityAPI, region string, concurrency int) *Client {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Client{api: a, sts: s, region: region, concurrency: concurrency}
}

// Region is the AWS region the client talks to.
func (c *Client) Region() string { return c.region }

// Identity returns the STS caller identity.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, classify("GetCallerIdentity", err)
	}
	return &Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
		Region:  c.region,
	}, nil
}
