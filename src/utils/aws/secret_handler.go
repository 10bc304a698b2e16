package aws_handler

import (
	"fmt"

	"autoinvest/src/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

type SecretManager struct {
	svc secretsmanageriface.SecretsManagerAPI
}

func NewSecretManager(svc secretsmanageriface.SecretsManagerAPI) *SecretManager {
	return &SecretManager{svc: svc}
}

func (s *SecretManager) GetSecretValue(secretId string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretId),
	}

	result, err := s.svc.GetSecretValue(input)
	if err != nil {
		return "", err
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretId)
	}

	return *result.SecretString, nil
}

// ResolveSQLPassword replaces the configured SQL password with the one stored
// in Secrets Manager when aws.sql_password_secret is set.
func ResolveSQLPassword(cfg *config.Config) error {
	if cfg.AWS.SQLPasswordSecret == "" {
		return nil
	}
	handler, err := NewAWSHandler(cfg.AWS)
	if err != nil {
		return err
	}
	return resolveSQLPassword(cfg, handler.SecretManager)
}

func resolveSQLPassword(cfg *config.Config, secrets *SecretManager) error {
	password, err := secrets.GetSecretValue(cfg.AWS.SQLPasswordSecret)
	if err != nil {
		return fmt.Errorf("failed to read SQL password secret: %w", err)
	}
	cfg.Databases.SQL.Password = password
	return nil
}
