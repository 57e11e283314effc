// Package contacts extracts emails, phone numbers, social profiles, and
// contact names from a business website.
package contacts

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/tenkpostcards/leadscout/internal/archive"
	"github.com/tenkpostcards/leadscout/internal/fetcher"
	"github.com/tenkpostcards/leadscout/internal/headless/detector"
	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/metrics"
	"github.com/tenkpostcards/leadscout/internal/validate"
)

// Contacts is everything the extractor pulled from a site.
type Contacts struct {
	Emails       []string          `json:"emails"`
	Phones       []string          `json:"phones"`
	Social       map[string]string `json:"social"`
	ContactNames []string          `json:"contactNames"`
	Enriched     bool              `json:"enriched"`
}

// Keywords in anchor text or href that mark a contact/about page.
var contactLinkKeywords = []string{"contact", "about", "reach", "get-in-touch", "connect"}

// Fallback paths probed when no contact link is found on the homepage.
var conventionalPaths = []string{"/contact", "/contact-us", "/about", "/about-us", "/team"}

const fetchTimeout = 10 * time.Second

// Extractor runs the scrape pipeline. renderer may be nil to disable the
// headless fallback; store may be nil to skip archiving.
type Extractor struct {
	fetch    fetcher.Fetcher
	renderer fetcher.Fetcher
	promote  *detector.Heuristic
	filter   *junkfilter.Filter
	verifier Verifier
	store    archive.Store
	logger   *zap.Logger
	now      func() time.Time
}

// NewExtractor wires an Extractor.
func NewExtractor(fetch fetcher.Fetcher, renderer fetcher.Fetcher, verifier Verifier, store archive.Store, logger *zap.Logger) *Extractor {
	if verifier == nil {
		verifier = FormatVerifier{}
	}
	if store == nil {
		store = archive.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		fetch:    fetch,
		renderer: renderer,
		promote:  detector.NewHeuristic(0),
		filter:   junkfilter.New(junkfilter.Options{}),
		verifier: verifier,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// SetPromoteThreshold overrides the rendered-size floor below which a
// script-heavy page is promoted to the headless renderer. Zero keeps the
// detector default.
func (e *Extractor) SetPromoteThreshold(minBytes int) {
	e.promote = detector.NewHeuristic(minBytes)
}

// Extract scrapes websiteURL and at most one contact/about page.
func (e *Extractor) Extract(ctx context.Context, websiteURL, businessName string) (Contacts, error) {
	normalized, err := validate.URL(websiteURL)
	if err != nil {
		return Contacts{}, fmt.Errorf("validate url: %w", err)
	}

	home, err := e.fetchPage(ctx, normalized)
	if err != nil {
		return Contacts{}, fmt.Errorf("fetch homepage: %w", err)
	}
	if home.StatusCode >= 400 {
		return Contacts{}, fmt.Errorf("fetch homepage: status %d", home.StatusCode)
	}

	base, err := url.Parse(home.URL)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(normalized)
	}

	homeDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(home.Body))
	if err != nil {
		return Contacts{}, fmt.Errorf("parse homepage: %w", err)
	}

	docs := []*goquery.Document{homeDoc}
	if extra := e.fetchContactPage(ctx, base, homeDoc); extra != nil {
		docs = append(docs, extra)
	}

	c := e.merge(ctx, docs, base.Hostname(), businessName)
	return c, nil
}

// fetchPage fetches a URL, promoting to the headless renderer when the plain
// response looks like a JavaScript shell.
func (e *Extractor) fetchPage(ctx context.Context, pageURL string) (fetcher.Response, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	resp, err := e.fetch.Fetch(fetchCtx, fetcher.Request{URL: pageURL})
	if err != nil {
		metrics.ObserveEnrichPage(pageURL, "error")
		return fetcher.Response{}, err
	}
	metrics.ObserveEnrichPage(pageURL, fmt.Sprintf("%d", resp.StatusCode))

	if e.renderer != nil && e.promote.ShouldPromote(resp) {
		e.logger.Debug("promoting to headless render", zap.String("url", pageURL))
		rendered, rerr := e.renderer.Fetch(ctx, fetcher.Request{URL: pageURL})
		if rerr != nil {
			e.logger.Warn("headless render failed", zap.String("url", pageURL), zap.Error(rerr))
			return resp, nil
		}
		resp = rendered
	}

	if resp.StatusCode < 400 {
		e.archivePage(ctx, resp)
	}
	return resp, nil
}

func (e *Extractor) archivePage(ctx context.Context, resp fetcher.Response) {
	u, err := url.Parse(resp.URL)
	if err != nil || u.Hostname() == "" {
		return
	}
	key := archive.PageKey(u.Hostname(), e.now())
	if err := e.store.Save(ctx, key, resp.Body); err != nil {
		e.logger.Warn("archive save failed", zap.String("key", key), zap.Error(err))
	}
}

// fetchContactPage finds and fetches at most one contact/about page. A
// discovered link is preferred; otherwise the conventional paths are probed
// until one answers. Any failure just means zero extra results.
func (e *Extractor) fetchContactPage(ctx context.Context, base *url.URL, homeDoc *goquery.Document) *goquery.Document {
	candidates := []string{}
	if link := findContactLink(base, homeDoc); link != "" {
		candidates = append(candidates, link)
	} else {
		for _, p := range conventionalPaths {
			candidates = append(candidates, base.Scheme+"://"+base.Host+p)
		}
	}

	for _, target := range candidates {
		resp, err := e.fetchPage(ctx, target)
		if err != nil || resp.StatusCode >= 400 {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			continue
		}
		return doc
	}
	return nil
}

// findContactLink scans homepage anchors for contact-ish links on the same
// host.
func findContactLink(base *url.URL, doc *goquery.Document) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, exists := s.Attr("href")
		if !exists {
			return true
		}
		haystack := strings.ToLower(href + " " + s.Text())
		for _, kw := range contactLinkKeywords {
			if !strings.Contains(haystack, kw) {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				return true
			}
			resolved := base.ResolveReference(ref)
			if resolved.Host != base.Host {
				return true
			}
			found = resolved.String()
			return false
		}
		return true
	})
	return found
}

func (e *Extractor) merge(ctx context.Context, docs []*goquery.Document, host, businessName string) Contacts {
	c := Contacts{Social: make(map[string]string)}
	emailSeen := make(map[string]bool)
	phoneSeen := make(map[string]bool)
	nameSeen := make(map[string]bool)

	for _, doc := range docs {
		for _, email := range extractEmails(doc) {
			if emailSeen[email] || !e.verifier.Verify(ctx, email) {
				continue
			}
			emailSeen[email] = true
			c.Emails = append(c.Emails, email)
		}
		for _, phone := range extractPhones(doc) {
			if phoneSeen[phone] {
				continue
			}
			phoneSeen[phone] = true
			c.Phones = append(c.Phones, phone)
		}
		for platform, link := range extractSocial(doc, businessName, e.filter) {
			if c.Social[platform] == "" {
				c.Social[platform] = link
			}
		}
	}

	c.Emails = filterByDomainAffinity(c.Emails, host)

	for _, doc := range docs {
		docCopy := doc.Clone()
		docCopy.Find("script, style, noscript").Remove()
		for _, name := range extractNames(docCopy.Text(), c.Emails) {
			if !nameSeen[name] {
				nameSeen[name] = true
				c.ContactNames = append(c.ContactNames, name)
			}
		}
	}

	c.Enriched = len(c.Emails) > 0 || len(c.Phones) > 0 || len(c.Social) > 0
	return c
}
