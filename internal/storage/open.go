package storage

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/couchcryptid/geofence-service/internal/config"
)

// Open connects the backend selected by STORAGE_DRIVER.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		return wrap(OpenSQLite(ctx, cfg.StorageDSN))
	case config.DriverPostgres:
		return wrap(OpenPostgres(ctx, cfg.StorageDSN))
	case config.DriverRedis:
		return wrap(OpenRedis(ctx, cfg.StorageDSN))
	case config.DriverDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewDynamoDB(dynamodb.NewFromConfig(awsCfg), cfg.StorageDSN), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// wrap keeps a failed constructor's typed nil out of the Store interface.
func wrap[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
