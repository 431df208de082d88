package render

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chrome renders with a headless Chrome instance via the DevTools protocol.
type Chrome struct {
	ExecPath string
}

func (c *Chrome) Name() string { return "chrome" }

func (c *Chrome) Render(ctx context.Context, srcHTML, dstPDF string) error {
	abs, err := filepath.Abs(srcHTML)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	fileURL := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(fileURL.String()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return retryableOnDeadline(ctx, fmt.Errorf("chrome: %w", err))
	}

	if err := os.WriteFile(dstPDF, buf, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
