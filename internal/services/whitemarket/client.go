package whitemarket

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultExportURL = "https://s3.white.market/export/v1/products/730.json"

// Product is one listing in the export feed. The feed has shipped several
// field spellings over time, so it is kept as a loose map.
type Product map[string]any

type Client struct {
	url    string
	token  string
	client *resty.Client
}

func NewClient(url, token string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultExportURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(2 * time.Second)

	return &Client{url: url, token: token, client: client}
}

// FetchProducts downloads and decodes the export.
func (c *Client) FetchProducts(ctx context.Context) ([]Product, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")
	if c.token != "" {
		req.SetAuthToken(c.token)
	}

	resp, err := req.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch whitemarket export: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch whitemarket export: status %d", resp.StatusCode())
	}

	body := resp.Body()
	// the S3 object may be gzip-compressed without a Content-Encoding header
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("open gzip export: %w", err)
		}
		defer gz.Close()
		if body, err = io.ReadAll(gz); err != nil {
			return nil, fmt.Errorf("read gzip export: %w", err)
		}
	}
	return DecodeProducts(body)
}

// DecodeProducts accepts a root array, {"products": [...]}, {"data": [...]}
// or newline-delimited objects.
func DecodeProducts(body []byte) ([]Product, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var products []Product
		if err := decodeJSON(trimmed, &products); err != nil {
			return nil, fmt.Errorf("decode export array: %w", err)
		}
		return products, nil
	}

	var wrapped struct {
		Products []Product `json:"products"`
		Data     []Product `json:"data"`
	}
	if err := decodeJSON(trimmed, &wrapped); err == nil {
		if len(wrapped.Products) > 0 {
			return wrapped.Products, nil
		}
		if len(wrapped.Data) > 0 {
			return wrapped.Data, nil
		}
	}

	var products []Product
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] != '{' {
			continue
		}
		var p Product
		if err := decodeJSON([]byte(line), &p); err != nil {
			continue
		}
		products = append(products, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ndjson export: %w", err)
	}
	return products, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
