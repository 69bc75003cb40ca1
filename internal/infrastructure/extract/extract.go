// Package extract turns uploaded study material and web pages into plain
// text for the learning endpoints.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXTRACTOR
// ══════════════════════════════════════════════════════════════════════════════

// MaxContentChars caps the text handed to the model.
const MaxContentChars = 50000

// Document is extracted text with a display title.
type Document struct {
	Title   string
	Content string
}

// Extractor reads study material.
type Extractor interface {
	FromFile(ctx context.Context, filename string, r io.Reader) (*Document, error)
	FromURL(ctx context.Context, rawURL string) (*Document, error)
}

// Config configures Service.
type Config struct {
	// MaxUploadBytes bounds file and page reads.
	MaxUploadBytes int64

	// MaxChars truncates extracted text.
	MaxChars int

	FetchTimeout time.Duration

	// OEmbedEndpoint is the YouTube oEmbed endpoint.
	OEmbedEndpoint string

	UserAgent string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: 20 << 20,
		MaxChars:       MaxContentChars,
		FetchTimeout:   15 * time.Second,
		OEmbedEndpoint: "https://www.youtube.com/oembed",
		UserAgent:      "Mozilla/5.0 (compatible; FeynLearnBot/1.0)",
	}
}

// Service implements Extractor with docconv and plain HTTP fetches.
type Service struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger

	// converters are swappable in tests; pdf needs the pdftotext binary.
	convertPDF  func(io.Reader) (string, map[string]string, error)
	convertDocx func(io.Reader) (string, map[string]string, error)
	convertHTML func(io.Reader, bool) (string, map[string]string, error)
}

var _ Extractor = (*Service)(nil)

// NewService creates a Service. A nil client gets one with cfg.FetchTimeout.
func NewService(cfg Config, client *http.Client, log *logger.Logger) *Service {
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.OEmbedEndpoint == "" {
		cfg.OEmbedEndpoint = def.OEmbedEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		cfg:         cfg,
		client:      client,
		log:         log.With(logger.Component("extract")),
		convertPDF:  docconv.ConvertPDF,
		convertDocx: docconv.ConvertDocx,
		convertHTML: docconv.ConvertHTML,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Files
// ─────────────────────────────────────────────────────────────────────────────

// FromFile extracts text from a .txt, .pdf or .docx upload.
func (s *Service) FromFile(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, shared.WrapError("extract", "FromFile", shared.ErrExternalService, "failed to read upload", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, shared.NewDomainError("extract", "FromFile", shared.ErrValueOutOfRange, "file is too large")
	}

	var text string
	switch ext {
	case ".txt":
		text = string(data)
	case ".pdf":
		text, _, err = s.convertPDF(bytes.NewReader(data))
	case ".docx":
		text, _, err = s.convertDocx(bytes.NewReader(data))
	default:
		return nil, shared.Validation("extract", "FromFile", "Unsupported file type. Please upload a .pdf, .docx, or .txt file.")
	}
	if err != nil {
		s.log.Warn("conversion failed", logger.String("ext", ext), logger.Err(err))
		return nil, shared.WrapError("extract", "FromFile", shared.ErrExternalService,
			"Could not extract text from file. Please ensure it contains selectable text.", err)
	}

	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return s.finish(title, text)
}

// ─────────────────────────────────────────────────────────────────────────────
// URLs
// ─────────────────────────────────────────────────────────────────────────────

// FromURL extracts a web page, or the metadata of a YouTube video.
func (s *Service) FromURL(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, shared.Validation("extract", "FromURL", "url must be an absolute http(s) URL")
	}

	if IsYouTubeURL(u.String()) {
		return s.fromYouTube(ctx, u.String())
	}
	return s.fromPage(ctx, u.String())
}

func (s *Service) fromPage(ctx context.Context, pageURL string) (*Document, error) {
	resp, err := s.get(ctx, pageURL, "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	isHTML := strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml")
	if !isHTML && !strings.Contains(contentType, "text/plain") {
		return nil, shared.Validation("extract", "FromURL", "URL does not point to a readable web page")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		return nil, shared.WrapError("extract", "FromURL", shared.ErrExternalService, "failed to read page", err)
	}

	if !isHTML {
		return s.finish(pageURL, string(body))
	}

	title := PageTitle(body)
	text, _, err := s.convertHTML(bytes.NewReader(body), true)
	if err != nil {
		return nil, shared.WrapError("extract", "FromURL", shared.ErrExternalService, "failed to extract page text", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return s.finish(title, "")
	}
	return s.finish(title, fmt.Sprintf("Title: %s\n\nContent:\n%s", title, text))
}

type oembed struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

func (s *Service) fromYouTube(ctx context.Context, videoURL string) (*Document, error) {
	id := YouTubeVideoID(videoURL)
	if id == "" {
		return nil, shared.Validation("extract", "FromURL", "Could not extract YouTube video ID")
	}

	meta, err := s.fetchOEmbed(ctx, id)
	if err != nil {
		s.log.Warn("oembed lookup failed", logger.String("video_id", id), logger.Err(err))
		return s.finish("YouTube video "+id, fmt.Sprintf(
			"YouTube Video ID: %s\n\nNote: This is a YouTube video. For best results, upload a transcript or notes from the video.", id))
	}

	title := orDefault(meta.Title, "Unknown Video")
	author := orDefault(meta.AuthorName, "Unknown Author")
	return s.finish(title, fmt.Sprintf(
		"YouTube Video Title: %s\nAuthor: %s\n\nNote: This is a YouTube video. Topics are based on the video title and channel. "+
			"For better results, upload a text document, notes, or a transcript of the video.", title, author))
}

func (s *Service) fetchOEmbed(ctx context.Context, id string) (*oembed, error) {
	q := url.Values{}
	q.Set("url", "https://www.youtube.com/watch?v="+id)
	q.Set("format", "json")

	resp, err := s.get(ctx, s.cfg.OEmbedEndpoint+"?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meta oembed
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode oembed: %w", err)
	}
	return &meta, nil
}

func (s *Service) get(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, shared.Validation("extract", "FromURL", "invalid url")
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, shared.WrapError("extract", "FromURL", shared.ErrExternalService, "Failed to fetch URL content", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, shared.NewDomainError("extract", "FromURL", shared.ErrExternalService,
			fmt.Sprintf("Failed to fetch URL: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	return resp, nil
}

// finish truncates the text and rejects empty documents.
func (s *Service) finish(title, text string) (*Document, error) {
	text = strings.TrimSpace(strings.ToValidUTF8(text, ""))
	if text == "" {
		return nil, shared.Validation("extract", "Extract", "The content appears to be empty or contains no readable text")
	}
	return &Document{
		Title:   orDefault(strings.TrimSpace(title), "Study Material"),
		Content: TruncateChars(text, s.cfg.MaxChars),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

var (
	titlePattern   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	youTubePattern = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([^&\s#]+)`),
		regexp.MustCompile(`youtu\.be/([^?&\s#/]+)`),
		regexp.MustCompile(`youtube\.com/embed/([^?&\s#/]+)`),
		regexp.MustCompile(`youtube\.com/v/([^?&\s#/]+)`),
		regexp.MustCompile(`youtube\.com/shorts/([^?&\s#/]+)`),
	}
)

// IsYouTubeURL reports whether u points at YouTube.
func IsYouTubeURL(u string) bool {
	return strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be")
}

// YouTubeVideoID returns the video id of a YouTube URL, or "".
func YouTubeVideoID(u string) string {
	for _, p := range youTubePattern {
		if m := p.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

// PageTitle returns the unescaped <title> of an HTML page.
func PageTitle(page []byte) string {
	m := titlePattern.FindSubmatch(page)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(string(m[1]))), " ")
}

// TruncateChars cuts s to at most n characters.
func TruncateChars(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
