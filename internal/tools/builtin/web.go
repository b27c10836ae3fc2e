package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fyrsmithlabs/agentloop/internal/tools"
)

// maxFetchBytes caps the body returned by fetch_url.
const maxFetchBytes = 5000

func webSearch(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "web_search",
		Description: "Search the web for information",
		Category:    CategoryWeb,
		Permission:  tools.RequireConfirmation,
		RiskLevel:   2,
		Schema: tools.NewSchema(
			tools.String("query", "search query", tools.Required()),
			tools.Integer("num_results", "number of results", tools.Default(opts.SearchResults)),
		),
		// Results are synthetic; no search backend is wired.
		Capability: tools.CapabilityFunc(func(_ context.Context, args map[string]any) (any, error) {
			query := args["query"].(string)
			n := args["num_results"].(int)
			if n > opts.SearchResults {
				n = opts.SearchResults
			}
			if n < 0 {
				n = 0
			}
			results := make([]map[string]any, 0, n)
			for i := 1; i <= n; i++ {
				results = append(results, map[string]any{
					"title":   fmt.Sprintf("Result %d for '%s'", i, query),
					"url":     fmt.Sprintf("https://example.com/result-%d", i),
					"snippet": fmt.Sprintf("This is a mock search result for query: %s", query),
				})
			}
			return map[string]any{
				"query":   query,
				"results": results,
				"count":   len(results),
			}, nil
		}),
	}
}

func fetchURL(opts Options) tools.Definition {
	return tools.Definition{
		Name:        "fetch_url",
		Description: "Fetch content from a URL",
		Category:    CategoryWeb,
		Permission:  tools.RequireConfirmation,
		RiskLevel:   2,
		Schema: tools.NewSchema(
			tools.String("url", "http or https URL", tools.Required()),
			tools.Integer("timeout", "timeout in seconds", tools.Default(int(opts.FetchTimeout.Seconds()))),
		),
		Capability: tools.CapabilityFunc(func(ctx context.Context, args map[string]any) (any, error) {
			raw := args["url"].(string)
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, fmt.Errorf("invalid url %q", raw)
			}

			timeout := opts.FetchTimeout
			if secs := args["timeout"].(int); secs > 0 {
				timeout = secondsToDuration(secs)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, ErrTimedOut
				}
				return nil, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
			if err != nil {
				return nil, err
			}
			headers := make(map[string]string, len(resp.Header))
			for k := range resp.Header {
				headers[k] = resp.Header.Get(k)
			}
			return map[string]any{
				"url":         raw,
				"status_code": resp.StatusCode,
				"content":     string(body),
				"headers":     headers,
				"size":        len(body),
			}, nil
		}),
	}
}
