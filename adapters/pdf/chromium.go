package invoicepdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	_ "image/png"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sticktoon/go-invoice/invoice"
)

const (
	defaultPrintScale     = 1.0
	defaultViewportWidth  = 1024
	defaultViewportHeight = 1400
)

var lengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

var pageSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// PrintOptions configures Chromium's print pipeline.
type PrintOptions struct {
	PageSize        string
	Landscape       *bool
	PrintBackground *bool
	Scale           float64
	MarginTop       string
	MarginBottom    string
	MarginLeft      string
	MarginRight     string
}

// ChromiumEngine captures and prints invoice pages in a shared headless
// Chromium instance. It implements invoice.Rasterizer and invoice.Printer.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	// BaseURL resolves relative asset links, such as line item images.
	BaseURL string
	// BlockExternalAssets stops the page from fetching http(s) resources.
	BlockExternalAssets bool

	ViewportWidth  int64
	ViewportHeight int64
	DefaultPrint   PrintOptions

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Capture screenshots the node whose id is req.TargetID. A missing node
// returns an error wrapping invoice.ErrCaptureTargetMissing.
func (e *ChromiumEngine) Capture(ctx context.Context, req invoice.CaptureRequest) (invoice.Capture, error) {
	if e == nil {
		return invoice.Capture{}, invoice.NewError(invoice.KindInternal, "chromium engine is nil", nil)
	}
	if strings.TrimSpace(req.TargetID) == "" {
		return invoice.Capture{}, invoice.NewError(invoice.KindValidation, "capture target id is required", nil)
	}
	scale := req.Scale
	if scale <= 0 {
		scale = invoice.DefaultCaptureScale
	}

	selector := targetSelector(req.TargetID)
	var (
		nodes   []*cdp.Node
		shot    []byte
		missing bool
	)
	err := e.run(ctx, req.HTML,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(nodes) == 0 {
				missing = true
				return nil
			}
			return chromedp.ScreenshotScale(selector, scale, &shot, chromedp.ByQuery).Do(ctx)
		}),
	)
	if err != nil {
		return invoice.Capture{}, invoice.NewError(invoice.KindInternal, "chromium capture failed", err)
	}
	if missing {
		return invoice.Capture{}, fmt.Errorf("capture #%s: %w", req.TargetID, invoice.ErrCaptureTargetMissing)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(shot))
	if err != nil {
		return invoice.Capture{}, invoice.NewError(invoice.KindInternal, "decode capture", err)
	}
	return invoice.Capture{PNG: shot, Width: cfg.Width, Height: cfg.Height}, nil
}

// Print runs the page through Chromium's print pipeline. Print media rules
// apply, so elements styled as no-print are left out.
func (e *ChromiumEngine) Print(ctx context.Context, req invoice.PrintRequest) ([]byte, error) {
	if e == nil {
		return nil, invoice.NewError(invoice.KindInternal, "chromium engine is nil", nil)
	}

	options := e.defaultPrintOptions()
	if req.PageSize != "" {
		options.PageSize = req.PageSize
	}
	params, err := buildPrintToPDFParams(options)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	err = e.run(ctx, req.HTML, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdf, _, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "chromium print failed", err)
	}
	return pdf, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

// run loads htmlInput into a fresh tab and runs actions against it.
func (e *ChromiumEngine) run(ctx context.Context, htmlInput []byte, actions ...chromedp.Action) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.ensureBrowser(); err != nil {
		return err
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	content := string(injectBaseURL(htmlInput, e.BaseURL))
	width, height := e.viewport()

	all := []chromedp.Action{}
	if e.BlockExternalAssets {
		all = append(all,
			network.Enable(),
			network.SetBlockedURLs().WithURLPatterns(externalAssetPatterns()),
		)
	}
	all = append(all,
		chromedp.EmulateViewport(width, height),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, content).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	all = append(all, actions...)

	if err := chromedp.Run(execCtx, all...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func (e *ChromiumEngine) viewport() (int64, int64) {
	width, height := e.ViewportWidth, e.ViewportHeight
	if width <= 0 {
		width = defaultViewportWidth
	}
	if height <= 0 {
		height = defaultViewportHeight
	}
	return width, height
}

func (e *ChromiumEngine) defaultPrintOptions() PrintOptions {
	defaults := e.DefaultPrint
	if defaults.Scale == 0 {
		defaults.Scale = defaultPrintScale
	}
	if defaults.PrintBackground == nil {
		defaults.PrintBackground = boolPtr(true)
	}
	if defaults.PageSize == "" {
		defaults.PageSize = invoice.DefaultPageSize
	}
	return defaults
}

func targetSelector(id string) string {
	return `[id="` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id) + `"]`
}

func buildPrintToPDFParams(opts PrintOptions) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF()

	scale := opts.Scale
	if scale == 0 {
		scale = defaultPrintScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, invoice.NewError(invoice.KindValidation, "print scale must be between 0.1 and 2.0", nil)
	}
	params = params.WithScale(scale)

	if opts.Landscape != nil {
		params = params.WithLandscape(*opts.Landscape)
	}
	if opts.PrintBackground != nil {
		params = params.WithPrintBackground(*opts.PrintBackground)
	}

	if opts.PageSize == "" {
		params = params.WithPreferCSSPageSize(true)
	} else {
		size, ok := pageSizesInches[strings.ToUpper(opts.PageSize)]
		if !ok {
			return nil, invoice.NewError(invoice.KindValidation, fmt.Sprintf("unsupported print page size: %s", opts.PageSize), nil)
		}
		params = params.WithPaperWidth(size.width).WithPaperHeight(size.height)
	}

	if opts.MarginTop != "" {
		value, err := parseLengthInches(opts.MarginTop)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginTop(value)
	}
	if opts.MarginBottom != "" {
		value, err := parseLengthInches(opts.MarginBottom)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginBottom(value)
	}
	if opts.MarginLeft != "" {
		value, err := parseLengthInches(opts.MarginLeft)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginLeft(value)
	}
	if opts.MarginRight != "" {
		value, err := parseLengthInches(opts.MarginRight)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginRight(value)
	}

	return params, nil
}

func parseLengthInches(value string) (float64, error) {
	matches := lengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("invalid print length: %s", value), nil)
	}

	raw := matches[1]
	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "in"
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("invalid print length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / 96.0, nil
	default:
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("unsupported print length unit: %s", unit), nil)
	}
}

func injectBaseURL(htmlInput []byte, baseURL string) []byte {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if strings.Contains(lower, "<base") {
		return htmlInput
	}

	baseTag := fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			insertPos := headIdx + end + 1
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(baseTag), htmlInput[insertPos:]...)...)
		}
	}

	return append([]byte(baseTag), htmlInput...)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}

// externalAssetPatterns blocks every http(s) request made by the page.
func externalAssetPatterns() []*network.BlockPattern {
	return []*network.BlockPattern{
		{URLPattern: "http://*:*/*", Block: true},
		{URLPattern: "https://*:*/*", Block: true},
	}
}

func boolPtr(value bool) *bool {
	return &value
}
