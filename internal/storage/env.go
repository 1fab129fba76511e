// internal/storage/env.go
package storage

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the credential set read from the process environment. Each backend
// validates only the variables it needs.
type Env struct {
	BucketName    string `env:"BUCKET_NAME"`
	BasePath      string `env:"STORAGE_BASE_PATH"`
	InfraProvider string `env:"INFRA_PROVIDER"`

	AWSRegion          string `env:"AWS_REGION"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	AzureAccountName  string `env:"AZURE_STORAGE_ACCOUNT_NAME"`
	AzureClientID     string `env:"AZURE_CLIENT_ID"`
	AzureTenantID     string `env:"AZURE_TENANT_ID"`
	AzureClientSecret string `env:"AZURE_CLIENT_SECRET"`

	GCPCredentialsJSON string `env:"GOOGLE_CLOUD_APPLICATION_CREDENTIALS"`
}

// EnvFromOS parses the storage variables from the environment.
func EnvFromOS() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse storage env: %w", err)
	}
	return e, nil
}

type requirement struct {
	name  string
	value string
}

// requireVars returns an error for the first empty entry, in order.
func requireVars(reqs ...requirement) error {
	for _, r := range reqs {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	return nil
}
