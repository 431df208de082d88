package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// WeasyPrint renders through the weasyprint command line tool.
type WeasyPrint struct {
	Bin string
}

func (w *WeasyPrint) Name() string { return "weasyprint" }

func (w *WeasyPrint) Render(ctx context.Context, srcHTML, dstPDF string) error {
	bin, err := exec.LookPath(w.Bin)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRendererNotFound, w.Bin, err)
	}

	cmd := exec.CommandContext(ctx, bin, srcHTML, dstPDF)
	// Relative stylesheet and image links resolve against the document.
	cmd.Dir = filepath.Dir(srcHTML)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			err = fmt.Errorf("weasyprint: %w: %s", err, lastLine(msg))
		} else {
			err = fmt.Errorf("weasyprint: %w", err)
		}
		return retryableOnDeadline(ctx, err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
