package source

import (
	"bytes"
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

// ErrInvalidCACert is returned when the CA bundle holds no certificate.
var ErrInvalidCACert = errors.New("no certificates found in CA bundle")

// OpenSearchConfig configures the events index connection.
type OpenSearchConfig struct {
	URL         string
	Index       string
	Username    string
	Password    string
	CACertPath  string
	VerifyCerts bool
	PageSize    int
	KeepAlive   time.Duration
	Logger      *slog.Logger
}

// NewOpenSearch connects to the events index. Basic auth is used only when
// both username and password are set.
func NewOpenSearch(cfg OpenSearchConfig) (*OpenSearch, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: !cfg.VerifyCerts, //nolint:gosec // enabled by --verify-certs.
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCACert, cfg.CACertPath)
		}

		tlsConfig.RootCAs = pool
	}

	clientCfg := opensearch.Config{
		Addresses:            []string{cmp.Or(cfg.URL, DefaultURL)},
		Transport:            &http.Transport{TLSClientConfig: tlsConfig},
		MaxRetries:           defaultRetries,
		EnableRetryOnTimeout: true,
		CompressRequestBody:  true,
	}

	if cfg.Username != "" && cfg.Password != "" {
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{Client: clientCfg})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	return &OpenSearch{
		client:    &apiScroller{client: client},
		index:     cmp.Or(cfg.Index, DefaultIndex),
		pageSize:  pageSize,
		keepAlive: keepAlive,
		logger:    logger,
	}, nil
}

// apiScroller adapts the opensearchapi client to scroller.
type apiScroller struct {
	client *opensearchapi.Client
}

func (s *apiScroller) search(
	ctx context.Context, index string, body []byte, size int, keepAlive time.Duration,
) (page, error) {
	resp, err := s.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    bytes.NewReader(body),
		Params: opensearchapi.SearchParams{
			Scroll: keepAlive,
			Size:   &size,
		},
	})
	if err != nil {
		return page{}, err
	}

	return toPage(resp.ScrollID, resp.Hits.Hits), nil
}

func (s *apiScroller) scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (page, error) {
	resp, err := s.client.Scroll.Get(ctx, opensearchapi.ScrollGetReq{
		ScrollID: scrollID,
		Params:   opensearchapi.ScrollGetParams{Scroll: keepAlive},
	})
	if err != nil {
		return page{}, err
	}

	return toPage(resp.ScrollID, resp.Hits.Hits), nil
}

func (s *apiScroller) clear(ctx context.Context, scrollID string) error {
	_, err := s.client.Scroll.Delete(ctx, opensearchapi.ScrollDeleteReq{ScrollIDs: []string{scrollID}})

	return err
}

func toPage(scrollID *string, hits []opensearchapi.SearchHit) page {
	out := page{hits: make([]json.RawMessage, 0, len(hits))}

	if scrollID != nil {
		out.scrollID = *scrollID
	}

	for _, hit := range hits {
		out.hits = append(out.hits, hit.Source)
	}

	return out
}
