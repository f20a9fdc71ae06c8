package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/dao/lockdao"
	"github.com/savaki/catalog-deployer/internal/services"
)

// ProvideLeaseDAO returns the build lease store, or nil when no lock table is configured
func ProvideLeaseDAO(ctx context.Context, config *services.Config, client *dynamodb.Client) *lockdao.DAO {
	if config.LockTable == "" {
		zerolog.Ctx(ctx).Debug().Msg("No lock table configured, build leases disabled")
		return nil
	}
	return lockdao.New(client, config.LockTable)
}
