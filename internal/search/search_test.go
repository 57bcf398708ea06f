package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

type fakeES struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/orders/_doc/"):
		body, _ := io.ReadAll(r.Body)
		f.docs[strings.TrimPrefix(r.URL.Path, "/orders/_doc/")] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.URL.Path == "/orders/_search":
		hits := make([]map[string]json.RawMessage, 0, len(f.docs))
		for _, d := range f.docs {
			hits = append(hits, map[string]json.RawMessage{"_source": d})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{"total": map[string]any{"value": len(hits)}, "hits": hits},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}
}

func newIndex(t *testing.T) (*OrderIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{docs: map[string]json.RawMessage{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &OrderIndex{ES: es, Index: "orders"}, fake
}

func TestOrderIndex_IndexAndSearch(t *testing.T) {
	t.Parallel()

	idx, fake := newIndex(t)
	ctx := context.Background()

	o := &models.Order{
		ID:               uuid.New(),
		CustomerName:     "Dana Levi",
		CustomerEmail:    "dana@example.com",
		Status:           domain.StatusConfirmed,
		TotalAmount:      decimal.RequireFromString("69.00"),
		PaymentReference: "pi_1",
		Lines: domain.OrderLines{
			domain.NewLineItem("v1", "Margherita", "", "", decimal.NewFromInt(50), 1, nil, nil),
		},
	}
	require.NoError(t, idx.IndexOrder(ctx, o))
	require.Contains(t, fake.docs, o.ID.String())

	res, err := idx.Search(ctx, "dana", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "1x Margherita", res.Items[0].Summary)
	assert.Equal(t, "pi_1", res.Items[0].PaymentReference)
}

func TestOrderIndex_EmptyQuery(t *testing.T) {
	t.Parallel()

	idx, _ := newIndex(t)
	res, err := idx.Search(context.Background(), "  ", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Items)
}
