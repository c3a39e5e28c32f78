package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	pathlib "path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/devknoll/container-query-polyfill/archive"
	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/dom"
	"github.com/devknoll/container-query-polyfill/fetch"
	"github.com/devknoll/container-query-polyfill/layout"
	"github.com/devknoll/container-query-polyfill/state"
	"github.com/devknoll/container-query-polyfill/transpile"
)

// localReader resolves a relative stylesheet reference against the place the
// document came from. nil when the origin cannot serve relative references.
type localReader func(rel string) ([]byte, error)

// localDir serves references from the directory the document was read from.
func localDir(dir string) localReader {
	return func(rel string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	}
}

// localArchive serves references from the archive the document came from,
// resolved against the document member itself.
func localArchive(archivePath, member string) localReader {
	dir := pathlib.Dir(member)
	return func(rel string) ([]byte, error) {
		name := pathlib.Clean(pathlib.Join(dir, rel))
		if name == ".." || strings.HasPrefix(name, "../") {
			return nil, fmt.Errorf("reference (%s) escapes the archive", rel)
		}
		return archive.ReadFile(archivePath, name)
	}
}

// processDoc statically applies container queries to a single document:
// every stylesheet is rewritten in place, the engine is run to a stable
// state on the configured viewport and the resulting attributes and custom
// properties end up baked into the markup. "src" is part of the source path
// (always including file name) relative to the original path, "dst" is the
// destination directory.
func processDoc(ctx context.Context, r io.Reader, src, dst string, local localReader, j job, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Apply starting", zap.String("from", src))
	defer func(start time.Time) {
		// One bad document must not stop a directory or archive run.
		if r := recover(); r != nil {
			log.Error("Apply ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("apply panic: %v", r)
		} else {
			log.Info("Apply completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	cr, err := charset.NewReader(r, "")
	if err != nil {
		return fmt.Errorf("unable to sniff document charset (%s): %w", src, err)
	}
	docNode, err := html.Parse(cr)
	if err != nil {
		return fmt.Errorf("unable to parse document (%s): %w", src, err)
	}

	reg := transpile.NewRegistry()
	tr := transpile.New(reg, j.topts, log)

	var fetcher *fetch.Fetcher
	if j.topts.BaseURL != nil {
		fetcher = fetch.New(env.Cfg.Document.Fetch, log)
	}

	var (
		sheets   []*css.Sheet
		batches  [][]*transpile.Descriptor
		diagText []byte
	)

	// The user stylesheet comes first so page styles override it.
	if len(env.UserStyle) > 0 {
		text, err := decodeText(env.UserStyle)
		if err != nil {
			return fmt.Errorf("unable to decode user stylesheet: %w", err)
		}
		res := tr.Process(text)
		diagText = append(diagText, logDiagnostics(res.Diagnostics, "user stylesheet", log)...)
		sheets = append(sheets, res.Sheet)
		batches = append(batches, res.Descriptors)
	}

	for _, source := range dom.FindStyleSources(docNode) {
		text, name := source.Inline, "inline style"
		if source.Href != "" {
			name = source.Href
			var ok bool
			if text, ok = resolveHref(ctx, source.Href, fetcher, j.topts.BaseURL, local, log); !ok {
				continue
			}
		}

		res := tr.Process(text)
		diagText = append(diagText, logDiagnostics(res.Diagnostics, name, log)...)

		if source.Href != "" {
			dom.ReplaceWithStyle(source, res.CSS)
		} else {
			dom.SetStyleText(source, res.CSS)
		}
		sheets = append(sheets, res.Sheet)
		batches = append(batches, res.Descriptors)
	}

	opts := dom.Options{
		ViewportWidth:  float64(env.Cfg.Document.Viewport.Width),
		ViewportHeight: float64(env.Cfg.Document.Viewport.Height),
		RootFontSize:   env.Cfg.Document.RootFontSize,
		Sheets:         sheets,
		Log:            log,
	}
	if j.vw > 0 {
		opts.ViewportWidth, opts.ViewportHeight = j.vw, j.vh
	}

	d, err := dom.NewDocument(docNode, opts)
	if err != nil {
		return fmt.Errorf("unable to host document (%s): %w", src, err)
	}

	eng := layout.NewEngine(d.Root(), d.Host(), reg, log)
	defer eng.Close()
	for _, ds := range batches {
		eng.AddSheet(ds)
	}

	if err := d.Apply(eng); err != nil {
		return fmt.Errorf("unable to settle document (%s): %w", src, err)
	}
	d.Bake()

	values := buildValues(src, KindDocument, ".html", len(reg.All()))
	outputName = buildOutputPath(values, src, dst, ".html", env)

	if err := ensureWritable(outputName, env, log); err != nil {
		return err
	}
	out, err := os.Create(outputName)
	if err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	if err := d.Render(out); err != nil {
		out.Close()
		return fmt.Errorf("unable to render output: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	storeResult(env, outputName, dst, diagText, log)
	return nil
}

// resolveHref retrieves a linked stylesheet as UTF-8 text. References go
// over the network when a base URL was given and against the document origin
// otherwise. Unresolvable links stay untouched in the markup.
func resolveHref(ctx context.Context, href string, fetcher *fetch.Fetcher, base *url.URL, local localReader, log *zap.Logger) (string, bool) {
	if fetcher != nil {
		sheet, err := fetcher.Fetch(ctx, base, href)
		if err != nil {
			log.Warn("Leaving linked stylesheet untouched", zap.String("href", href), zap.Error(err))
			return "", false
		}
		return string(sheet.Body), true
	}

	u, err := url.Parse(href)
	if err != nil || u.IsAbs() {
		log.Warn("Leaving linked stylesheet untouched, no base URL to resolve against", zap.String("href", href))
		return "", false
	}
	if local == nil {
		log.Warn("Leaving linked stylesheet untouched, origin cannot serve relative references", zap.String("href", href))
		return "", false
	}
	data, err := local(u.Path)
	if err != nil {
		log.Warn("Leaving linked stylesheet untouched", zap.String("href", href), zap.Error(err))
		return "", false
	}
	text, err := decodeText(data)
	if err != nil {
		log.Warn("Leaving linked stylesheet untouched", zap.String("href", href), zap.Error(err))
		return "", false
	}
	return text, true
}

// logDiagnostics surfaces rewrite diagnostics in the log and renders them
// into text for the debug report.
func logDiagnostics(diags []transpile.Diagnostic, src string, log *zap.Logger) []byte {
	if len(diags) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, d := range diags {
		fn := log.Info
		switch d.Severity {
		case transpile.SeverityWarning:
			fn = log.Warn
		case transpile.SeverityError:
			fn = log.Error
		}
		fn("Rewrite diagnostic", zap.String("source", src), zap.String("where", d.Where), zap.String("problem", d.Message))
		fmt.Fprintf(&buf, "%s: %s\n", src, d)
	}
	return buf.Bytes()
}
