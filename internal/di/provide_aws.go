package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/savaki/catalog-deployer/internal/services"
)

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideSecretsManager(config aws.Config) *services.SecretsManagerService {
	return services.NewSecretsManagerService(secretsmanager.NewFromConfig(config))
}

func ProvideCodeBuildClientFactory(config aws.Config) *services.CodeBuildClientFactory {
	return services.NewCodeBuildClientFactory(config)
}
