// Command link-expiry запускается по расписанию как AWS Lambda и предупреждает
// партнёров о ссылках на форму ответа, срок которых скоро истекает.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"bidtracker/config"
	"bidtracker/db"
	"bidtracker/internal/links"
	"bidtracker/internal/logging"
	"bidtracker/internal/notify"
)

type secretPayload struct {
	DatabaseURL string `json:"DATABASE_URL"`
}

type result struct {
	Warned int `json:"warned"`
}

func getSecret(ctx context.Context, sm *secretsmanager.Client, secretArn string) (string, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretArn)})
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	var payload secretPayload
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &payload); err != nil {
		return "", fmt.Errorf("parse secret json: %w", err)
	}
	if payload.DatabaseURL == "" {
		return "", errors.New("DATABASE_URL missing in secret")
	}
	return payload.DatabaseURL, nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func handler(ctx context.Context) (result, error) {
	logger, err := logging.New(os.Getenv("LOG_LEVEL"), "production")
	if err != nil {
		return result{}, fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-central-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return result{}, fmt.Errorf("aws config: %w", err)
	}

	connString := os.Getenv("POSTGRES_CONN")
	if secretArn := os.Getenv("SECRET_ARN"); secretArn != "" {
		connString, err = getSecret(ctx, secretsmanager.NewFromConfig(awsCfg), secretArn)
		if err != nil {
			return result{}, err
		}
	}
	if connString == "" {
		return result{}, errors.New("SECRET_ARN or POSTGRES_CONN env var is required")
	}

	from := os.Getenv("SES_FROM_EMAIL")
	if from == "" {
		return result{}, errors.New("SES_FROM_EMAIL env var is required")
	}

	conn, err := db.Connect(ctx, config.DatabaseConfig{
		ConnString:      connString,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		return result{}, err
	}
	defer conn.Close()

	sweeper := &links.Sweeper{
		Store:    db.NewStorage(conn),
		Notifier: notify.NewSESNotifier(awsCfg, from, os.Getenv("NOTIFY_TO_EMAIL")),
		Log:      logger,
		Within:   durationEnv("PARTNER_LINK_WARN_WITHIN", 72*time.Hour),
		BaseURL:  os.Getenv("PUBLIC_BASE_URL"),
	}
	warned, err := sweeper.Run(ctx)
	if err != nil {
		logger.Error("link expiry sweep failed", zap.Error(err))
		return result{}, err
	}
	return result{Warned: warned}, nil
}

func main() {
	lambda.Start(handler)
}
