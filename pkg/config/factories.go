package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/filesetfs/filesetfs/internal/logger"
	"github.com/filesetfs/filesetfs/pkg/catalog"
	"github.com/filesetfs/filesetfs/pkg/driver"
	"github.com/filesetfs/filesetfs/pkg/driver/badgerfs"
	"github.com/filesetfs/filesetfs/pkg/driver/local"
	"github.com/filesetfs/filesetfs/pkg/driver/memory"
	driverS3 "github.com/filesetfs/filesetfs/pkg/driver/s3"
	"github.com/mitchellh/mapstructure"
)

// ClientConfig converts the metadata section into the catalog client
// configuration. Strategy parameter completeness is checked by
// catalog.Connect, not here.
func ClientConfig(cfg *MetadataConfig) catalog.ClientConfig {
	return catalog.ClientConfig{
		ServerURI:         cfg.ServerURI,
		Tenant:            cfg.Tenant,
		Auth:              catalog.AuthType(cfg.Auth.Type),
		Token:             cfg.Auth.Token,
		Principal:         cfg.Auth.Principal,
		KeytabPath:        cfg.Auth.KeytabPath,
		RequestsPerSecond: cfg.MaxRequestsPerSecond,
		RequestBurst:      cfg.RequestBurst,
	}
}

// CreateDriverRegistry builds the driver registry from configuration.
//
// Each enabled driver gets its section decoded into the driver's own
// configuration type and its factory registered under its storage
// scheme. Drivers left out of Enabled are never constructed, so their
// dependencies (AWS credentials, Badger directories) are not touched.
//
// Parameters:
//   - ctx: Context for driver client initialization
//   - cfg: Drivers configuration
//
// Returns:
//   - *driver.Registry: Registry with all enabled drivers registered
//   - error: Configuration or initialization error
func CreateDriverRegistry(ctx context.Context, cfg *DriversConfig) (*driver.Registry, error) {
	registry := driver.NewRegistry()

	for _, name := range cfg.Enabled {
		var (
			factory driver.Factory
			err     error
		)

		switch name {
		case "file":
			factory, err = createLocalFactory(cfg.File)
		case "memory":
			factory = memory.NewFactory()
		case "s3":
			factory, err = createS3Factory(ctx, cfg.S3)
		case "badger":
			factory, err = createBadgerFactory(cfg.Badger)
		default:
			return nil, fmt.Errorf("unknown driver: %q (supported: file, memory, s3, badger)", name)
		}
		if err != nil {
			return nil, err
		}

		if err := registry.Register(name, factory); err != nil {
			return nil, err
		}
	}

	logger.Info("Driver registry initialized: schemes=%v", registry.Schemes())
	return registry, nil
}

// createLocalFactory builds the local filesystem driver factory.
func createLocalFactory(options map[string]any) (driver.Factory, error) {
	var driverCfg local.Config
	if err := mapstructure.Decode(options, &driverCfg); err != nil {
		return nil, fmt.Errorf("failed to decode local driver config: %w", err)
	}

	return local.NewFactory(driverCfg), nil
}

// createBadgerFactory builds the BadgerDB driver factory.
func createBadgerFactory(options map[string]any) (driver.Factory, error) {
	var driverCfg badgerfs.Config
	if err := mapstructure.Decode(options, &driverCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger driver config: %w", err)
	}

	if driverCfg.DBPath == "" {
		return nil, fmt.Errorf("badger driver: db_path is required")
	}

	return badgerfs.NewFactory(driverCfg), nil
}

// createS3Factory builds the S3 driver factory around a configured AWS
// client.
func createS3Factory(ctx context.Context, options map[string]any) (driver.Factory, error) {
	type S3DriverConfig struct {
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var driverCfg S3DriverConfig
	if err := mapstructure.Decode(options, &driverCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 driver config: %w", err)
	}

	if driverCfg.Region == "" {
		return nil, fmt.Errorf("S3 driver: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(driverCfg.Region))

	// Custom endpoint support (MinIO, Localstack, etc.)
	if driverCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               driverCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default chain
	if driverCfg.AccessKeyID != "" && driverCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			driverCfg.AccessKeyID,
			driverCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := driverCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if driverCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 driver initialized: region=%s, endpoint=%s", driverCfg.Region, driverCfg.Endpoint)

	return driverS3.NewFactory(client), nil
}
