package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// searxResponse is the subset of the SearXNG JSON API we consume.
type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// webSearch queries the configured SearXNG-compatible search API and
// normalizes the hits into {results: [{title, url, snippet}]}.
func (d *Dispatcher) webSearch(ctx context.Context, inv Invocation, query string) (map[string]any, error) {
	q := argString(inv.Args, "query", query)

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json", d.cfg.SearchBaseURL, url.QueryEscape(q))
	body, err := d.fetchJSON(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	var parsed searxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]map[string]any, 0, d.cfg.SearchMaxResults)
	for _, hit := range parsed.Results {
		if len(results) >= d.cfg.SearchMaxResults {
			break
		}
		results = append(results, map[string]any{
			"title":   hit.Title,
			"url":     hit.URL,
			"snippet": hit.Content,
		})
	}

	return map[string]any{
		"query":   q,
		"results": results,
	}, nil
}

// customAPI posts the query to the configured endpoint and echoes the JSON
// body back as the result payload.
func (d *Dispatcher) customAPI(ctx context.Context, inv Invocation, query string) (map[string]any, error) {
	payload, err := json.Marshal(map[string]any{
		"query": query,
		"args":  inv.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	body, err := d.fetchJSON(ctx, http.MethodPost, d.cfg.CustomAPIEndpoint, payload)
	if err != nil {
		return nil, err
	}

	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return map[string]any{"response": response}, nil
}

// fetchJSON performs one validated HTTP request and returns the body,
// capped at the guard's response size limit.
func (d *Dispatcher) fetchJSON(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	if err := d.guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("url validation: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.guard.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.guard.MaxResponseSize()))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
