// Package render turns computed HTML into PDF artifacts by driving an
// external renderer, and inspects or exports the results.
package render

import (
	"context"
	"errors"
	"fmt"
)

// ErrRendererNotFound is returned when the configured renderer is unknown
// or its executable is not installed.
var ErrRendererNotFound = errors.New("renderer not found")

// RetryableError marks render failures worth another attempt, such as an
// attempt that ran into its deadline.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return "retryable render error: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Renderer converts an HTML file into a PDF file.
type Renderer interface {
	Name() string
	Render(ctx context.Context, srcHTML, dstPDF string) error
}

// Options configures the renderer returned by New.
type Options struct {
	WeasyPrintBin string
	ChromePath    string // empty uses chromedp's lookup
}

// New returns the renderer registered under name.
func New(name string, opts Options) (Renderer, error) {
	switch name {
	case "", "weasyprint":
		bin := opts.WeasyPrintBin
		if bin == "" {
			bin = "weasyprint"
		}
		return &WeasyPrint{Bin: bin}, nil
	case "chrome":
		return &Chrome{ExecPath: opts.ChromePath}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrRendererNotFound, name)
	}
}

// retryableOnDeadline wraps err as retryable when ctx ran out of time but
// the caller's parent context may still allow another attempt.
func retryableOnDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &RetryableError{Err: err}
	}
	return err
}
