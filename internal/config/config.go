// config loads the credential material the pipeline needs from the
// environment and assembles the AWS SDK configuration. All five credential
// values must be present before any resource is created; a missing one is a
// fatal precondition.
package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/spf13/viper"
)

var ErrCredentialMissing = fmt.Errorf("required credential is not set")

// Env variable names for the account credentials. The cert and private key
// paths identify the account's X.509 signing pair; the control plane client
// itself authenticates with the access/secret key.
const (
	EnvUserID     = "AWS_USER_ID"
	EnvAccessKey  = "AWS_ACCESS_KEY_ID"
	EnvSecretKey  = "AWS_SECRET_ACCESS_KEY"
	EnvCert       = "EC2_CERT"
	EnvPrivateKey = "EC2_PRIVATE_KEY"
)

type Credentials struct {
	UserID         string
	AccessKey      string
	SecretKey      string
	CertPath       string
	PrivateKeyPath string
}

// LoadCredentials reads the five required credential values from the
// environment. The first unset one is reported by name.
func LoadCredentials() (Credentials, error) {
	v := viper.New()
	for _, name := range []string{EnvUserID, EnvAccessKey, EnvSecretKey, EnvCert, EnvPrivateKey} {
		if err := v.BindEnv(name); err != nil {
			return Credentials{}, err
		}
		if !v.IsSet(name) || v.GetString(name) == "" {
			return Credentials{}, fmt.Errorf("%w: %s", ErrCredentialMissing, name)
		}
	}
	return Credentials{
		UserID:         v.GetString(EnvUserID),
		AccessKey:      v.GetString(EnvAccessKey),
		SecretKey:      v.GetString(EnvSecretKey),
		CertPath:       v.GetString(EnvCert),
		PrivateKeyPath: v.GetString(EnvPrivateKey),
	}, nil
}

// AWSConfig builds an SDK configuration pinned to 'region' with static
// credentials from the environment preflight.
func AWSConfig(ctx context.Context, region string, creds Credentials) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to assemble AWS configuration: %w", err)
	}
	return cfg, nil
}
