package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"floor-service/internal/logger"
	"floor-service/internal/models"
)

// Product is the catalog view of a sellable item; the price is the
// current list price, captured onto the line at add time.
type Product struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// Catalog resolves a product id to its current price and display metadata
type Catalog interface {
	Resolve(ctx context.Context, productID int) (*Product, error)
}

// HTTPCatalog calls the catalog service, with a Redis read-through cache
// in front of it. A cache failure never fails the lookup.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
	rdb     *redis.Client
	ttl     time.Duration
	logger  *logger.Logger
}

// NewHTTPCatalog creates the default catalog client. rdb may be nil,
// which disables caching.
func NewHTTPCatalog(baseURL string, rdb *redis.Client, log *logger.Logger) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		rdb:     rdb,
		ttl:     time.Minute,
		logger:  log,
	}
}

// Resolve returns the product, NotFoundError when the catalog does not
// know the id
func (c *HTTPCatalog) Resolve(ctx context.Context, productID int) (*Product, error) {
	if p := c.fromCache(ctx, productID); p != nil {
		return p, nil
	}

	url := fmt.Sprintf("%s/products/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.NotFoundError{Entity: "product", Key: productID}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	c.toCache(ctx, &product)

	return &product, nil
}

func (c *HTTPCatalog) fromCache(ctx context.Context, productID int) *Product {
	if c.rdb == nil {
		return nil
	}

	val, err := c.rdb.Get(ctx, cacheKey(productID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog_cache_miss", "Redis read failed, falling back to catalog", "", map[string]interface{}{
				"product_id": productID,
			})
		}
		return nil
	}

	var product Product
	if err := json.Unmarshal([]byte(val), &product); err != nil {
		return nil
	}
	return &product
}

func (c *HTTPCatalog) toCache(ctx context.Context, product *Product) {
	if c.rdb == nil {
		return
	}

	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(product.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog_cache_write_failed", "Redis write failed", "", map[string]interface{}{
			"product_id": product.ID,
		})
	}
}

func cacheKey(productID int) string {
	return fmt.Sprintf("catalog:product:%d", productID)
}
