// Package search keeps an Elasticsearch index of orders for the admin board.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

type ClientConfig struct {
	URL      string
	User     string
	Password string
}

func NewClient(ctx context.Context, cfg ClientConfig, log *slog.Logger) (*elasticsearch.Client, error) {
	log.Info("connecting to elasticsearch", "url", cfg.URL)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// OrderDocument is the indexed shape of an order.
type OrderDocument struct {
	ID               string             `json:"id"`
	CustomerName     string             `json:"customer_name"`
	CustomerEmail    string             `json:"customer_email"`
	CustomerPhone    string             `json:"customer_phone"`
	Address          string             `json:"address"`
	Summary          string             `json:"summary"`
	Status           domain.OrderStatus `json:"status"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	PaymentReference string             `json:"payment_reference"`
	Demo             bool               `json:"demo"`
	CreatedAt        time.Time          `json:"created_at"`
}

func Document(o *models.Order) OrderDocument {
	return OrderDocument{
		ID:               o.ID.String(),
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		Address:          o.Address,
		Summary:          o.Lines.Summary(),
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		PaymentReference: o.PaymentReference,
		Demo:             o.Demo,
		CreatedAt:        o.CreatedAt,
	}
}

type OrderIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func (x *OrderIndex) IndexOrder(ctx context.Context, o *models.Order) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Document(o)); err != nil {
		return fmt.Errorf("index order: %w", err)
	}

	res, err := x.ES.Index(x.Index, &buf,
		x.ES.Index.WithContext(ctx),
		x.ES.Index.WithDocumentID(o.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index order: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index order: %s", res.Status())
	}
	return nil
}

type Results struct {
	Total int64           `json:"total"`
	Items []OrderDocument `json:"items"`
}

func (x *OrderIndex) Search(ctx context.Context, query string, from, size int) (Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Results{Items: []OrderDocument{}}, nil
	}

	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"customer_name^2", "customer_email", "customer_phone", "address", "summary", "payment_reference"},
				"fuzziness": "AUTO",
			},
		},
		"sort": []any{map[string]any{"created_at": map[string]any{"order": "desc"}}},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Results{}, fmt.Errorf("search orders: %w", err)
	}

	res, err := x.ES.Search(
		x.ES.Search.WithContext(ctx),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return Results{}, fmt.Errorf("search orders: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Results{}, fmt.Errorf("search orders: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source OrderDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Results{}, fmt.Errorf("search orders: decode: %w", err)
	}

	out := Results{Total: r.Hits.Total.Value, Items: make([]OrderDocument, len(r.Hits.Hits))}
	for i, h := range r.Hits.Hits {
		out.Items[i] = h.Source
	}
	return out, nil
}
