package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client wraps the Neo4j driver with connection-pool tuning and a health
// check, mirroring the teacher's internal/graph Neo4j client wrapper.
type Client struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
}

// NewClient creates a Neo4j client and verifies connectivity before
// returning (fail fast on startup).
func NewClient(ctx context.Context, uri, user, password, database string) (*Client, error) {
	if uri == "" || user == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%q, user=%q", uri, user)
	}
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(user, password, ""),
		func(cfg *neo4j.Config) {
			cfg.MaxConnectionPoolSize = 50
			cfg.ConnectionAcquisitionTimeout = 60 * time.Second
			cfg.MaxConnectionLifetime = 3600 * time.Second
			cfg.ConnectionLivenessCheckTimeout = 5 * time.Second
			cfg.SocketConnectTimeout = 5 * time.Second
			cfg.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err)
	}

	logger := slog.Default().With("component", "graphstore")
	logger.Info("neo4j client connected", "uri", uri, "database", database)

	return &Client{driver: driver, logger: logger, database: database}, nil
}

// Close closes the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	c.logger.Info("neo4j client closed")
	return nil
}

// HealthCheck verifies connectivity; used by the HTTP collaborator.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
}

func (c *Client) runRead(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
}

// Driver exposes the underlying driver for advanced use (schema migration).
func (c *Client) Driver() neo4j.DriverWithContext { return c.driver }

// Database returns the configured database name.
func (c *Client) Database() string { return c.database }
