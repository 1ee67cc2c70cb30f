package jobs

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	userAgent       = "spigell/job-matcher"
	contentType     = "application/json"
	contentEncoding = "gzip"
	defaultMaxPages = 100
)

// Client reads the job catalog from an HTTP endpoint that serves either a JSON array
// of postings or paginated pages of the form {"items": [...], "page": 0, "pages": N}.
type Client struct {
	token      string
	logger     *zap.Logger
	URL        string
	HTTPClient *http.Client
	UserAgent  string
	// MaxPages bounds the number of pages Fetch reads. Zero means the default of 100.
	MaxPages int
}

type itemResponse struct {
	Items   []map[string]any `json:"items"`
	Found   int              `json:"found"`
	Pages   int              `json:"pages"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

func NewClient(logger *zap.Logger, url, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  token,
		logger: logger,
		URL:    url,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
}

// Fetch returns all postings from every page of the catalog endpoint. Pages are
// requested by a local counter up to MaxPages; a server that answers with another page
// than the one requested is an error.
func (c *Client) Fetch(ctx context.Context) (*Postings, error) {
	first, err := c.getPage(ctx, -1)
	if err != nil {
		return nil, err
	}

	items := first.Items
	c.logger.Debug("got catalog response", zap.Int("pages", first.Pages), zap.Int("items", len(items)))

	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if first.Pages > maxPages {
		return nil, fmt.Errorf("fetching catalog: %d pages exceed the limit of %d", first.Pages, maxPages)
	}

	for page := 1; page < first.Pages; page++ {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", page, first.Pages),
		))

		response, err := c.getPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if response.Page != page {
			return nil, fmt.Errorf("fetching catalog: requested page %d, got page %d", page, response.Page)
		}
		items = append(items, response.Items...)
	}

	postings, err := decodeItems(items)
	if err != nil {
		return nil, err
	}

	if err := postings.Normalize(); err != nil {
		return nil, err
	}

	return postings, nil
}

func (c *Client) getPage(ctx context.Context, page int) (*itemResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}

	c.setHeaders(req)
	if page >= 0 {
		q := req.URL.Query()
		q.Set("page", strconv.Itoa(page))
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: bad status: %s", resp.Status)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	response := &itemResponse{}
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &response.Items); err != nil {
			return nil, fmt.Errorf("parsing catalog response: %w", err)
		}
		response.Pages = 1
		return response, nil
	}

	if err := json.Unmarshal(data, response); err != nil {
		return nil, fmt.Errorf("parsing catalog response: %w", err)
	}

	return response, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
}

// decodeItems converts loosely typed catalog items into postings. Document stores
// commonly expose the identifier as "_id", which is accepted as an alias of "id".
func decodeItems(items []map[string]any) (*Postings, error) {
	for _, item := range items {
		if _, ok := item["id"]; ok {
			continue
		}
		if id, ok := item["_id"]; ok {
			item["id"] = fmt.Sprint(id)
		}
	}

	var postings []*JobPosting
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &postings,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding catalog items: %w", err)
	}

	return &Postings{Items: postings}, nil
}
