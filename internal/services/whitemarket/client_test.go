package whitemarket

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProductsLayouts(t *testing.T) {
	cases := map[string]string{
		"array":    `[{"name_hash":"AK-47 | Redline (Field-Tested)","price":"12.5"},{"name_hash":"AWP | Asiimov (Field-Tested)","price":40}]`,
		"products": `{"products":[{"name_hash":"a"},{"name_hash":"b"}]}`,
		"data":     `{"data":[{"name_hash":"a"},{"name_hash":"b"}]}`,
		"ndjson":   "{\"name_hash\":\"a\"}\n\n{\"name_hash\":\"b\"}\nnot json\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			products, err := DecodeProducts([]byte(body))
			require.NoError(t, err)
			assert.Len(t, products, 2)
		})
	}

	products, err := DecodeProducts([]byte("   "))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestFetchProductsHandlesGzipAndToken(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(`[{"product_class_id":"1","name_hash":"★ Karambit","price_cents":150000}]`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	products, err := NewClient(srv.URL, "secret", time.Second).FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Bearer secret", auth)

	price, ok := products[0].price()
	require.True(t, ok)
	assert.Equal(t, "1500", price.String())
}

func TestFetchProductsReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).FetchProducts(context.Background())
	assert.ErrorContains(t, err, "status 403")
}
