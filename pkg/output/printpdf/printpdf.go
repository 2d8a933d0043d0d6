// Package printpdf prints rendered report pages to PDF with a headless
// Chrome, so the output keeps the page's charts and styling.
package printpdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/auditview/auditview/pkg/defaults"
)

// ErrNoBrowser is returned when no Chrome or Chromium can be found.
var ErrNoBrowser = errors.New("printpdf: no chrome or chromium found")

var browserNames = []string{"chrome", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}

// Well-known locations for systems where PATH isn't configured.
var browserPaths = []string{
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	`/usr/bin/google-chrome`,
	`/usr/bin/chromium-browser`,
	`/usr/bin/chromium`,
	`/snap/bin/chromium`,
	`/Applications/Google Chrome.app/Contents/MacOS/Google Chrome`,
	`/Applications/Chromium.app/Contents/MacOS/Chromium`,
}

// FindBrowser returns the first Chrome-compatible executable on PATH or in
// a well-known location.
func FindBrowser() (string, error) {
	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil && path != "" {
			return path, nil
		}
	}
	candidates := browserPaths
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		candidates = append(candidates, dir+`\Google\Chrome\Application\chrome.exe`)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNoBrowser
}

// Option configures a Printer.
type Option func(*Printer)

// WithExecPath pins the browser executable.
func WithExecPath(path string) Option {
	return func(p *Printer) { p.execPath = path }
}

// WithTimeout bounds one print. Defaults to defaults.PrintTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Printer) { p.timeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Printer) { p.logger = l }
}

// Printer starts a fresh headless browser per Print call.
type Printer struct {
	execPath string
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Printer.
func New(opts ...Option) *Printer {
	p := &Printer{timeout: defaults.PrintTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Print loads page into a blank tab and prints it with backgrounds, A4
// unless the page's CSS sets a size.
func (p *Printer) Print(ctx context.Context, html []byte) ([]byte, error) {
	execPath := p.execPath
	if execPath == "" {
		found, err := FindBrowser()
		if err != nil {
			return nil, err
		}
		execPath = found
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.ExecPath(execPath),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("printpdf: %w", err)
	}

	p.logger.Debug("printed report",
		slog.String("browser", execPath),
		slog.Int("bytes", len(pdf)),
		slog.Duration("took", time.Since(start)))
	return pdf, nil
}
