// Package capture screenshots the kiosk page with headless Chromium.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Default viewport of a 1080p portrait signage display.
const (
	DefaultWidth   = 1080
	DefaultHeight  = 1920
	DefaultTimeout = 30 * time.Second
)

// readySelector is set on the kiosk <body> once the page is rendered.
const readySelector = `[data-ready="true"]`

// Options defines parameters for a kiosk capture.
type Options struct {
	// URL of the kiosk page, e.g. "http://127.0.0.1:8080/kiosk".
	URL string

	// Output is where the PNG is written. The file is replaced atomically.
	Output string

	Width  int
	Height int

	Timeout time.Duration

	// Username and Password are sent as basic auth when Username is set.
	Username string
	Password string
}

func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if o.Output == "" {
		return o, errors.New("capture: Output is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

func (o Options) tasks(png *[]byte) chromedp.Tasks {
	var tasks chromedp.Tasks
	if o.Username != "" {
		tasks = append(tasks,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Authorization": basicAuth(o.Username, o.Password)}),
		)
	}
	return append(tasks,
		chromedp.EmulateViewport(int64(o.Width), int64(o.Height)),
		chromedp.Navigate(o.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// Let web fonts settle before the shot.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(png, 100),
	)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// CaptureKiosk launches headless Chromium, loads opts.URL, waits for the
// page to mark itself ready and writes a full-page PNG to opts.Output.
func CaptureKiosk(parent context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	if err := chromedp.Run(ctx, opts.tasks(&png)); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return writeFileAtomic(opts.Output, png)
}

// writeFileAtomic keeps readers of path from seeing a half-written PNG.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".capture-*.png")
	if err != nil {
		return fmt.Errorf("capture: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("capture: replace %s: %w", path, err)
	}
	return nil
}
