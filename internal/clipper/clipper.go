// Package clipper turns a recipe URL into a dish name for the board.
package clipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/llm"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoDishName is returned when a page yields nothing usable as a dish name.
var ErrNoDishName = errors.New("no dish name found on page")

// ErrPrivateHost is returned for links that resolve to loopback, private or
// link-local addresses.
var ErrPrivateHost = errors.New("refusing to fetch a private address")

const (
	maxPromptText = 4000
	maxPageBytes  = 2 << 20
)

// Clipper handles fetching pages and extracting dish names from them.
type Clipper struct {
	httpClient *http.Client
	textGen    llm.TextGenerator
}

// NewClipper creates a new Clipper. textGen is optional and only consulted
// when the page markup carries no title.
func NewClipper(textGen llm.TextGenerator) *Clipper {
	return &Clipper{
		httpClient: newHTTPClient(false),
		textGen:    textGen,
	}
}

// newHTTPClient checks every dialed address, after DNS resolution, unless
// allowPrivate is set.
func newHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if !allowPrivate {
		dialer.Control = refusePrivate
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: 15 * time.Second, Transport: transport}
}

func refusePrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	return nil
}

// IsURL reports whether s looks like an http(s) link.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DishName fetches rawURL and returns the dish name it describes, in lang
// when the name comes from the language model.
func (c *Clipper) DishName(ctx context.Context, rawURL string, lang board.Lang) (string, error) {
	doc, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content: %w", err)
	}

	if name := titleFromMarkup(doc); name != "" {
		return name, nil
	}
	if c.textGen == nil {
		return "", ErrNoDishName
	}
	return c.extract(ctx, doc, lang)
}

func (c *Clipper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "meal-board/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}

	// Remove noise before reading text
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	return doc, nil
}

// titleFromMarkup tries og:title, then the first h1, then <title>.
func titleFromMarkup(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if name := cleanTitle(og); name != "" {
			return name
		}
	}
	if name := cleanTitle(doc.Find("h1").First().Text()); name != "" {
		return name
	}
	return cleanTitle(doc.Find("title").First().Text())
}

// cleanTitle collapses whitespace and drops a trailing " | Site" or
// " - Site" suffix.
func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for _, sep := range []string{" | ", " - ", " – ", " — "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

type extractedDish struct {
	Name string `json:"name"`
}

func (c *Clipper) extract(ctx context.Context, doc *goquery.Document, lang board.Lang) (string, error) {
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		return "", ErrNoDishName
	}
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}

	language := "English"
	if lang == board.Chinese {
		language = "Simplified Chinese"
	}
	prompt := fmt.Sprintf(`
You name dishes for a weekly meal board. Read the page text below and return
the name of the main dish it describes, in %s, as a JSON object:
{"name": "Dish name"}
Return {"name": ""} when the page is not about a dish.

Page text:
%s
`, language, text)

	resp, err := c.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("ai extraction failed: %w", err)
	}

	var extracted extractedDish
	if err := json.Unmarshal([]byte(resp.Content), &extracted); err != nil {
		llm.Reject(c.textGen, prompt)
		return "", fmt.Errorf("failed to parse AI response: %w. Response: %s", err, resp.Content)
	}
	if name := strings.TrimSpace(extracted.Name); name != "" {
		return name, nil
	}
	llm.Reject(c.textGen, prompt)
	return "", ErrNoDishName
}
