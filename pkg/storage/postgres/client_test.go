package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"rsiscalper/config"
	"rsiscalper/pkg/storage/postgres"
)

// testConfig returns the local test database settings. Tests that need a
// live server are skipped unless POSTGRES_TEST_DSN is set.
func testConfig(t *testing.T) config.PostgresConfig {
	t.Helper()
	if os.Getenv("POSTGRES_TEST_DSN") == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	return config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: os.Getenv("POSTGRES_TEST_PASSWORD"),
		DBName:   "rsiscalper_test",
		SSLMode:  "disable",
		TimeZone: "UTC",

		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
	}
}

func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	testConfig(t)

	client, err := postgres.NewClient(os.Getenv("POSTGRES_TEST_DSN"))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return client
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// go test -v --run ^TestPostgresClientHealthy$
func TestPostgresClientHealthy(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}
}
