package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSM parameter names for production secrets.
const (
	paramPostgresHost     = "SCALPER_DB_HOST"
	paramPostgresUser     = "SCALPER_DB_USER"
	paramPostgresPassword = "SCALPER_DB_PASSWORD"
	paramBrokerKey        = "SCALPER_APCA_API_KEY_ID"
	paramBrokerSecret     = "SCALPER_APCA_API_SECRET_KEY"
)

const ssmTimeout = 5 * time.Second

// parameterGetter is the part of the SSM client the secret lookups use.
type parameterGetter interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// Credentials returns the broker key pair. In prod both values come from the
// SSM parameter store in one round trip; otherwise the config (or APCA_* env
// overrides) wins.
func (b *BrokerConfig) Credentials(ctx context.Context, env string) (string, string, error) {
	if env != "prod" {
		return b.APIKey, b.APISecret, nil
	}
	ctx, cancel := context.WithTimeout(ctx, ssmTimeout)
	defer cancel()

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", "", fmt.Errorf("load aws config: %w", err)
	}
	return brokerCredentials(ctx, ssm.NewFromConfig(awsCfg))
}

func brokerCredentials(ctx context.Context, client parameterGetter) (string, string, error) {
	values, err := getParameters(ctx, client, paramBrokerKey, paramBrokerSecret)
	if err != nil {
		return "", "", err
	}
	return values[paramBrokerKey], values[paramBrokerSecret], nil
}

// getParameters fetches decrypted values for names in one call. A name the
// store does not know is an error.
func getParameters(ctx context.Context, client parameterGetter, names ...string) (map[string]string, error) {
	decrypt := true
	out, err := client.GetParameters(ctx, &ssm.GetParametersInput{
		Names:          names,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return nil, fmt.Errorf("ssm get parameters: %w", err)
	}
	if len(out.InvalidParameters) > 0 {
		return nil, fmt.Errorf("ssm parameters not found: %v", out.InvalidParameters)
	}

	values := make(map[string]string, len(names))
	for _, p := range out.Parameters {
		if p.Name != nil && p.Value != nil {
			values[*p.Name] = *p.Value
		}
	}
	for _, name := range names {
		if values[name] == "" {
			return nil, fmt.Errorf("ssm parameter %s is empty", name)
		}
	}
	return values, nil
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	baseCtx := context.Background()
	ctxWithTimeout, cancel := context.WithTimeout(baseCtx, ssmTimeout)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
