package source

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"
)

// HTTPSource fetches frames with one GET per frame from a naming template.
type HTTPSource struct {
	client   *http.Client
	baseURL  string
	template string
	count    int
}

func NewHTTPSource(client *http.Client, baseURL, template string, count int) (*HTTPSource, error) {
	if count < 1 {
		return nil, fmt.Errorf("frame count must be at least 1, got %d", count)
	}
	if !strings.Contains(template, "%") {
		return nil, fmt.Errorf("frame template %q has no index verb", template)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		template: template,
		count:    count,
	}, nil
}

func (s *HTTPSource) FrameCount() int {
	return s.count
}

func (s *HTTPSource) Describe(index int) string {
	return s.baseURL + FrameURL(s.template, index)
}

func (s *HTTPSource) Fetch(ctx context.Context, index int) (image.Image, error) {
	url := s.Describe(index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
