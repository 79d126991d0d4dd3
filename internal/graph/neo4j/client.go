package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/cooccurrence"
	"github.com/qda-agent/backend/pkg/circuitbreaker"
	"github.com/qda-agent/backend/pkg/logger"
	"github.com/qda-agent/backend/pkg/retry"
)

type Client struct {
	driver      neo4j.DriverWithContext
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// Edge is one co-occurrence relationship between two category nodes.
type Edge struct {
	From   string
	To     string
	Weight int
}

func NewClient(uri, username, password string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// SyncMatrix mirrors the co-occurrence matrix into the graph. Existing
// category nodes and edges are replaced so the graph always reflects the
// latest computation.
func (c *Client) SyncMatrix(ctx context.Context, matrix cooccurrence.Matrix) error {
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `MATCH (:Category)-[r:CO_OCCURS_WITH]->(:Category) DELETE r`, nil)
		if err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}

		for _, name := range matrix.Categories {
			_, err := session.Run(ctx, `
				MERGE (c:Category {name: $name})
				SET c.updated_at = timestamp()
			`, map[string]interface{}{
				"name": name,
			})
			if err != nil {
				return fmt.Errorf("failed to merge category node: %w", err)
			}
		}

		for _, from := range matrix.Categories {
			for _, to := range matrix.Categories {
				weight := matrix.Value(from, to)
				if from == to || weight == 0 {
					continue
				}

				_, err := session.Run(ctx, `
					MATCH (a:Category {name: $from})
					MATCH (b:Category {name: $to})
					MERGE (a)-[r:CO_OCCURS_WITH]->(b)
					SET r.weight = $weight,
					    r.updated_at = timestamp()
				`, map[string]interface{}{
					"from":   from,
					"to":     to,
					"weight": weight,
				})
				if err != nil {
					return fmt.Errorf("failed to merge edge: %w", err)
				}
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	logger.Info("Co-occurrence graph synced", zap.Int("categories", len(matrix.Categories)))
	return nil
}

// Neighbors returns the categories that co-occur with the named category,
// strongest first.
func (c *Client) Neighbors(ctx context.Context, category string, minWeight int) ([]Edge, error) {
	var edges []Edge

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (a:Category {name: $name})-[r:CO_OCCURS_WITH]->(b:Category)
			WHERE r.weight >= $min_weight
			RETURN a.name, b.name, r.weight
			ORDER BY r.weight DESC
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"name":       category,
			"min_weight": minWeight,
		})
		if err != nil {
			return fmt.Errorf("failed to query neighbors: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()

			from, _ := record.Get("a.name")
			to, _ := record.Get("b.name")
			weight, _ := record.Get("r.weight")

			edges = append(edges, Edge{
				From:   from.(string),
				To:     to.(string),
				Weight: int(weight.(int64)),
			})
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	logger.Info("Neighbor query completed",
		zap.String("category", category),
		zap.Int("results", len(edges)),
	)

	return edges, nil
}

func (c *Client) AllEdges(ctx context.Context) ([]Edge, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
	defer session.Close(ctx)

	query := `
		MATCH (a:Category)-[r:CO_OCCURS_WITH]->(b:Category)
		RETURN a.name, b.name, r.weight
		ORDER BY a.name, b.name
	`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges: %w", err)
	}

	var edges []Edge
	for result.Next(ctx) {
		record := result.Record()

		from, _ := record.Get("a.name")
		to, _ := record.Get("b.name")
		weight, _ := record.Get("r.weight")

		edges = append(edges, Edge{
			From:   from.(string),
			To:     to.(string),
			Weight: int(weight.(int64)),
		})
	}

	if err = result.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return edges, nil
}
