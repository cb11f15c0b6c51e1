package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"insiderlens/internal/config"
)

// Client talks to EDGAR. All requests carry the declared User-Agent and run
// through a shared limiter; EDGAR bans clients that exceed 10 req/s.
type Client struct {
	baseURL     string
	dataBaseURL string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("edgar error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, cfg config.SECConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.sec.gov"
	}
	dataBaseURL := strings.TrimRight(cfg.DataBaseURL, "/")
	if dataBaseURL == "" {
		dataBaseURL = "https://data.sec.gov"
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     baseURL,
		dataBaseURL: dataBaseURL,
		userAgent:   cfg.UserAgent,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}

// GetCurrentForm4Feed returns the newest Form 4 entries from the current
// events Atom feed, newest first.
func (c *Client) GetCurrentForm4Feed(ctx context.Context, count int) ([]FeedEntry, error) {
	if count <= 0 {
		count = 100
	}
	query := url.Values{}
	query.Set("action", "getcurrent")
	query.Set("type", "4")
	query.Set("owner", "include")
	query.Set("count", fmt.Sprintf("%d", count))
	query.Set("output", "atom")
	body, err := c.doRequest(ctx, c.baseURL+"/cgi-bin/browse-edgar?"+query.Encode())
	if err != nil {
		return nil, err
	}
	return parseCurrentFeed(body)
}

// GetAccessionDocument fetches the XML ownership document of one accession.
// The filing index is consulted first to find the document name.
func (c *Client) GetAccessionDocument(ctx context.Context, cik, accession string) (content string, sourceURL string, err error) {
	dirURL := c.archiveDirURL(cik, accession)
	body, err := c.doRequest(ctx, dirURL+"/index.json")
	if err != nil {
		return "", "", err
	}
	var index struct {
		Directory struct {
			Item []struct {
				Name string `json:"name"`
			} `json:"item"`
		} `json:"directory"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		return "", "", fmt.Errorf("failed to parse filing index: %w", err)
	}
	docName := ""
	for _, item := range index.Directory.Item {
		name := strings.ToLower(item.Name)
		if !strings.HasSuffix(name, ".xml") {
			continue
		}
		// Skip the wrapper; the ownership document is the other XML file.
		if strings.HasSuffix(name, "-index.xml") || name == "primary_doc.xml.idx" {
			continue
		}
		docName = item.Name
		if strings.Contains(name, "form4") || strings.Contains(name, "primary_doc") || strings.Contains(name, "doc4") {
			break
		}
	}
	if docName == "" {
		return "", "", fmt.Errorf("no xml document in filing %s", accession)
	}
	docURL := dirURL + "/" + docName
	doc, err := c.doRequest(ctx, docURL)
	if err != nil {
		return "", "", err
	}
	return string(doc), docURL, nil
}

// GetSubmissions returns the issuer's full filing history from the
// submissions API, including any paged-out history files.
func (c *Client) GetSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	padded := PadCIK(cik)
	body, err := c.doRequest(ctx, c.dataBaseURL+"/submissions/CIK"+padded+".json")
	if err != nil {
		return nil, err
	}
	subs, extraFiles, err := parseSubmissions(body)
	if err != nil {
		return nil, err
	}
	for _, name := range extraFiles {
		extra, err := c.doRequest(ctx, c.dataBaseURL+"/submissions/"+name)
		if err != nil {
			return nil, err
		}
		if err := subs.appendFilingPage(extra); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (c *Client) archiveDirURL(cik, accession string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s",
		c.baseURL,
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accession, "-", ""))
}

// PadCIK left-pads a CIK to the ten digits EDGAR expects.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
