package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"gorm.io/datatypes"

	"haven/internal/memory"
)

const importerUserAgent = "haven-knowledge-importer/1.0"

// maxImportBytes caps how much of a remote document is read.
const maxImportBytes = 10 * 1024 * 1024

// Importer pulls external documents into the knowledge base.
type Importer struct {
	base       *Base
	httpClient *http.Client
}

func NewImporter(base *Base) *Importer {
	return &Importer{
		base: base,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

// ImportURL fetches a document, extracts its readable text and ingests
// it as a knowledge item. PDF responses are routed to the PDF
// extractor; everything else goes through readability. Topics are
// pulled from the page headings.
func (im *Importer) ImportURL(ctx context.Context, urlStr string, kind Kind, source string) (*Item, error) {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return nil, fmt.Errorf("invalid URL scheme: %s", urlStr)
	}
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", importerUserAgent)

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportBytes))
	if err != nil {
		return nil, err
	}

	var title, content string
	var topics []string

	if strings.Contains(resp.Header.Get("Content-Type"), "application/pdf") {
		log.Printf("[Knowledge] Detected PDF at %s, extracting text", urlStr)
		content, err = extractPDFText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		title = "PDF Document: " + parsedURL.Path
	} else {
		article, err := readability.FromReader(strings.NewReader(string(data)), parsedURL)
		if err != nil {
			return nil, fmt.Errorf("failed to extract article: %w", err)
		}
		title = article.Title
		content = article.TextContent
		topics = headingTopics(bytes.NewReader(data))
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("no readable content at %s", urlStr)
	}
	if title == "" {
		title = urlStr
	}
	if source == "" {
		source = parsedURL.Host
	}

	return im.base.Ingest(ctx, &Item{
		Title:   title,
		Content: content,
		Kind:    kind,
		Topics:  encodeTopics(topics),
		Source:  source,
	})
}

// ImportPDF ingests a local PDF file.
func (im *Importer) ImportPDF(ctx context.Context, path, title string, kind Kind, source string) (*Item, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	content, err := pdfText(reader)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("no text extracted from %s", path)
	}
	if title == "" {
		title = "PDF Document: " + path
	}

	return im.base.Ingest(ctx, &Item{
		Title:   title,
		Content: content,
		Kind:    kind,
		Source:  source,
	})
}

func extractPDFText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	return pdfText(reader)
}

func pdfText(reader *pdf.Reader) (string, error) {
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("[Knowledge] WARNING: failed to extract text from page %d: %v", i, err)
			continue
		}
		sb.WriteString(txt)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// headingTopics collects lowercased h1-h3 heading words as candidate
// topics. Parse failures yield no topics, not an error.
func headingTopics(r io.Reader) []string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var topics []string
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		for _, word := range strings.Fields(strings.ToLower(sel.Text())) {
			word = strings.Trim(word, ".,:;!?()\"'")
			if len(word) < 4 || seen[word] {
				continue
			}
			seen[word] = true
			topics = append(topics, word)
		}
	})
	if len(topics) > 10 {
		topics = topics[:10]
	}
	return topics
}

func encodeTopics(topics []string) datatypes.JSON {
	if len(topics) == 0 {
		return nil
	}
	return memory.EncodeList(topics)
}
