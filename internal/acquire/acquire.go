package acquire

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"scrapscii/internal/config"
	"scrapscii/internal/services"
)

// HTTPDoer describes the HTTP client used to download images.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Asset is a downloaded image that passed every acquisition gate.
type Asset struct {
	URL         string
	Bytes       []byte
	Extension   string
	ContentHash string
}

// Options configures a Fetcher.
type Options struct {
	Timeout         time.Duration
	UserAgent       string
	MaxBytes        int64
	CorruptedHashes []string
	Extensions      []string
}

// OptionsFromConfig maps the [acquire] section onto fetcher options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Timeout:         cfg.AcquireTimeout(),
		UserAgent:       cfg.Acquire.UserAgent,
		MaxBytes:        cfg.Acquire.MaxBytes,
		CorruptedHashes: cfg.Acquire.CorruptedHashes,
		Extensions:      cfg.Acquire.Extensions,
	}
}

// Fetcher downloads images over HTTP.
type Fetcher struct {
	client     HTTPDoer
	timeout    time.Duration
	userAgent  string
	maxBytes   int64
	corrupted  map[string]struct{}
	extensions []string
}

// New constructs a Fetcher. A nil client falls back to http.DefaultClient.
func New(client HTTPDoer, opts Options) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	corrupted := make(map[string]struct{}, len(opts.CorruptedHashes))
	for _, hash := range opts.CorruptedHashes {
		corrupted[strings.ToLower(strings.TrimSpace(hash))] = struct{}{}
	}
	extensions := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if ext = normalizeExtension(ext); ext != "" {
			extensions = append(extensions, ext)
		}
	}
	if len(extensions) == 0 {
		extensions = append(extensions, config.DefaultExtensions...)
	}
	return &Fetcher{
		client:     client,
		timeout:    opts.Timeout,
		userAgent:  strings.TrimSpace(opts.UserAgent),
		maxBytes:   opts.MaxBytes,
		corrupted:  corrupted,
		extensions: extensions,
	}
}

// Acquire downloads rawURL and validates the response, its extension, and its
// bytes. Failures are tagged with services.ErrResponse, ErrExtension or ErrImage.
func (f *Fetcher) Acquire(ctx context.Context, rawURL string) (Asset, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrResponse, "acquire", "build request", "invalid url", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Asset{}, services.Wrap(services.ErrResponse, "acquire", "download", "timed out", errors.Join(services.ErrTimeout, err))
		}
		return Asset{}, services.Wrap(services.ErrResponse, "acquire", "download", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Asset{}, services.Wrap(services.ErrResponse, "acquire", "download", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	ext := f.extension(resp.Header.Get("Content-Type"), finalURL)
	if ext == "" {
		return Asset{}, services.Wrap(services.ErrExtension, "acquire", "detect extension",
			fmt.Sprintf("content-type %q", resp.Header.Get("Content-Type")), nil)
	}

	body, err := f.read(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Asset{}, services.Wrap(services.ErrResponse, "acquire", "read body", "timed out", errors.Join(services.ErrTimeout, err))
		}
		if errors.Is(err, errTooLarge) {
			return Asset{}, services.Wrap(services.ErrImage, "acquire", "read body", "", err)
		}
		return Asset{}, services.Wrap(services.ErrResponse, "acquire", "read body", "", err)
	}
	if len(body) == 0 {
		return Asset{}, services.Wrap(services.ErrImage, "acquire", "validate bytes", "empty body", nil)
	}
	hash := ContentHash(body)
	if _, bad := f.corrupted[hash]; bad {
		return Asset{}, services.Wrap(services.ErrImage, "acquire", "validate bytes", "placeholder image "+hash, nil)
	}

	return Asset{URL: rawURL, Bytes: body, Extension: ext, ContentHash: hash}, nil
}

var errTooLarge = errors.New("body exceeds size limit")

func (f *Fetcher) read(body io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, f.maxBytes)
	}
	return data, nil
}

// extension prefers the declared content type and falls back to the suffix of
// the URL path. It returns "" when neither is accepted.
func (f *Fetcher) extension(contentType, rawURL string) string {
	if ext := extensionFromContentType(contentType); f.accepted(ext) {
		return ext
	}
	if ext := extensionFromURL(rawURL); f.accepted(ext) {
		return ext
	}
	return ""
}

func (f *Fetcher) accepted(ext string) bool {
	return ext != "" && slices.Contains(f.extensions, ext)
}

var subtypeAliases = map[string]string{
	"pjpeg":    "jpeg",
	"x-ms-bmp": "bmp",
	"x-bmp":    "bmp",
	"x-png":    "png",
	"x-tiff":   "tiff",
}

func extensionFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	kind, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" {
		return ""
	}
	if alias, ok := subtypeAliases[subtype]; ok {
		return alias
	}
	return normalizeExtension(subtype)
}

func extensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeExtension(path.Ext(parsed.Path))
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(ext), "."))
}

// ContentHash returns the sha1 hex digest used by the placeholder blocklist.
func ContentHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// TempName returns the staged file name for an image: the sha1 of its URL,
// the sample position and the detected extension. The position keeps
// concurrent samples that repeat a URL from sharing one file.
func TempName(rawURL string, position int64, ext string) string {
	sum := sha1.Sum([]byte(rawURL))
	return fmt.Sprintf("%s-%d.%s", hex.EncodeToString(sum[:]), position, normalizeExtension(ext))
}

// Stager stores staged image bytes and returns their path.
type Stager interface {
	Write(name string, data []byte) (string, error)
}

// Stage writes the asset into the workspace. A failure is tagged
// services.ErrImage since the bytes never reach the converter.
func Stage(ws Stager, asset Asset, position int64) (string, error) {
	staged, err := ws.Write(TempName(asset.URL, position, asset.Extension), asset.Bytes)
	if err != nil {
		return "", services.Wrap(services.ErrImage, "acquire", "stage image", "", err)
	}
	return staged, nil
}
