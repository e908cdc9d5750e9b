// Package renderer produces PDF documents from optimized resume content
// using headless Chrome.
package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/tailorhq/resume-tailor-api/internal/core"
	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
)

// DefaultRenderTimeout bounds one render including Chrome startup.
const DefaultRenderTimeout = 30 * time.Second

// A4 paper in inches for PrintToPDF.
const (
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
)

// ChromedpRendererOptions contains options for creating a
// ChromedpRenderer.
type ChromedpRendererOptions struct {
	// Templates serves resume template HTML. Required.
	Templates *core.TemplateCacheService

	// Timeout bounds one render. Defaults to DefaultRenderTimeout.
	Timeout time.Duration

	// ChromePath overrides the Chrome binary location. Empty lets
	// chromedp find one.
	ChromePath string

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// ChromedpRenderer renders resume HTML to PDF with a headless Chrome
// instance spawned per call.
type ChromedpRenderer struct {
	templates  *core.TemplateCacheService
	timeout    time.Duration
	chromePath string
	logger     *slog.Logger
}

// NewChromedpRenderer creates a ChromedpRenderer with the given options.
func NewChromedpRenderer(opts ChromedpRendererOptions) (*ChromedpRenderer, error) {
	if opts.Templates == nil {
		return nil, errors.New("chromedp renderer requires a template cache")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRenderTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ChromedpRenderer{
		templates:  opts.Templates,
		timeout:    opts.Timeout,
		chromePath: opts.ChromePath,
		logger:     opts.Logger.With("component", "chromedp_renderer"),
	}, nil
}

// MustNewChromedpRenderer creates a ChromedpRenderer, panicking on
// invalid options.
func MustNewChromedpRenderer(opts ChromedpRendererOptions) *ChromedpRenderer {
	r, err := NewChromedpRenderer(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Render implements pipeline.DocumentRenderer.
func (r *ChromedpRenderer) Render(ctx context.Context, content *pipeline.OptimizedResume, templateID string) ([]byte, error) {
	html, err := r.buildHTML(ctx, content, templateID)
	if err != nil {
		return nil, apperrors.Render(fmt.Sprintf("build resume HTML for template %q", templateID), err)
	}

	pdf, err := r.printToPDF(ctx, html)
	if err != nil {
		return nil, apperrors.Render("print resume to PDF", err)
	}
	return pdf, nil
}

// buildHTML executes the template with the optimized content.
func (r *ChromedpRenderer) buildHTML(ctx context.Context, content *pipeline.OptimizedResume, templateID string) (string, error) {
	raw, err := r.templates.TemplateHTML(ctx, templateID)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(templateID).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, content.Content); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func (r *ChromedpRenderer) printToPDF(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()

	// Chrome reads the page from a file URL; data URLs truncate large
	// documents.
	tmpDir, err := os.MkdirTemp("", "resume-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, err
	}

	var pdf []byte
	err = chromedp.Run(chromeCtx,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var printErr error
			pdf, _, printErr = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidthInches).
				WithPaperHeight(paperHeightInches).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return printErr
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

var _ pipeline.DocumentRenderer = (*ChromedpRenderer)(nil)
