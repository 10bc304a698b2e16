package aws_handler

import (
	"fmt"

	"autoinvest/src/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
)

type AWSHandler struct {
	SecretManager *SecretManager
}

// NewAWSHandler opens a session in the configured region. Credentials come
// from the default provider chain.
func NewAWSHandler(cfg config.AWSConfig) (*AWSHandler, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open AWS session: %w", err)
	}

	return &AWSHandler{
		SecretManager: NewSecretManager(secretsmanager.New(sess)),
	}, nil
}
