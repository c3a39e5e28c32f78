package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/devknoll/container-query-polyfill/archive"
	"github.com/devknoll/container-query-polyfill/config"
	"github.com/devknoll/container-query-polyfill/state"
	"github.com/devknoll/container-query-polyfill/transpile"
)

// Processing kinds. They select which sources a run picks up and how
// outputs are named.
const (
	KindStylesheet = "stylesheet"
	KindDocument   = "document"
)

// job carries per-run options through the source walkers.
type job struct {
	kind   string
	topts  transpile.Options
	pretty bool
	dump   bool
	vw, vh float64 // viewport override for documents, zero keeps configuration
}

// Transpile implements the "transpile" command. It rewrites @container rules
// in stylesheets into plain CSS driven by element attributes.
func Transpile(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("transpile")

	j := job{kind: KindStylesheet, pretty: cmd.Bool("pretty"), dump: cmd.Bool("dump")}
	j.topts.DisableWhere = env.Cfg.Document.Scoping == config.ScopingModeNone
	if base := cmd.String("base"); len(base) > 0 {
		if j.topts.BaseURL, err = url.Parse(base); err != nil {
			return fmt.Errorf("unable to parse base URL (%s): %w", base, err)
		}
	}

	if cmd.Args().Get(0) == "-" {
		if cmd.Args().Len() > 1 {
			log.Warn("Reading from stdin, ignoring destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
		}
		return transpileStream(ctx, os.Stdin, os.Stdout, j, log)
	}

	src, dst, err := resolvePaths(cmd, log)
	if err != nil {
		return err
	}
	intakeFlags(ctx, cmd, log)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, j, log)
}

// Apply implements the "apply" command. It rewrites document stylesheets,
// evaluates container conditions on the configured viewport and bakes the
// resulting attributes and custom properties into the markup.
func Apply(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("apply")

	j := job{kind: KindDocument}
	j.topts.DisableWhere = env.Cfg.Document.Scoping == config.ScopingModeNone
	if base := cmd.String("base"); len(base) > 0 {
		if j.topts.BaseURL, err = url.Parse(base); err != nil {
			return fmt.Errorf("unable to parse base URL (%s): %w", base, err)
		}
	}
	if vp := cmd.String("viewport"); len(vp) > 0 {
		if j.vw, j.vh, err = parseViewport(vp); err != nil {
			return err
		}
	}

	// Pages processed outside a browser often miss their site-wide styles, a
	// user supplied stylesheet fills that hole.
	if env.Cfg.Document.StylesheetPath != "" {
		data, err := os.ReadFile(env.Cfg.Document.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read style css from %q: %w", env.Cfg.Document.StylesheetPath, err)
		}
		env.UserStyle = data
	}

	src, dst, err := resolvePaths(cmd, log)
	if err != nil {
		return err
	}
	intakeFlags(ctx, cmd, log)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, j, log)
}

// resolvePaths reads source and destination arguments, making both absolute.
// Missing destination means current directory.
func resolvePaths(cmd *cli.Command, log *zap.Logger) (src, dst string, err error) {
	src = cmd.Args().Get(0)
	if len(src) == 0 {
		return "", "", errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return "", "", err
	}

	dst = cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return "", "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", "", err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}
	return src, dst, nil
}

// intakeFlags moves shared command line flags into the run environment.
func intakeFlags(ctx context.Context, cmd *cli.Command, log *zap.Logger) {
	env := state.EnvFromContext(ctx)
	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		var err error
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}
}

func parseViewport(s string) (w, h float64, err error) {
	ws, hs, ok := strings.Cut(s, "x")
	if ok {
		if w, err = strconv.ParseFloat(ws, 64); err == nil {
			h, err = strconv.ParseFloat(hs, 64)
		}
	}
	if !ok || err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport specification (%s), expected WxH in px", s)
	}
	return w, h, nil
}

// process handles the core logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and
// processes accordingly.
func process(ctx context.Context, src, dst string, j job, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, j, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, j, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		ok, enc, err := isSourceFile(head, j.kind)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if ok && len(tail) == 0 {
			if file, err := os.Open(head); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			} else {
				defer file.Close()
				if err := processSource(ctx, file, enc, filepath.Base(head), dst, localDir(filepath.Dir(head)), j, log); err != nil {
					log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				}
			}
			break
		}
		return fmt.Errorf("input was not recognized as %s source (%s)", j.kind, head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding processable sources.
func processDir(ctx context.Context, dir, dst string, j job, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if arc {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, j, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		ok, enc, err := isSourceFile(path, j.kind)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !ok {
			log.Debug("Skipping file, not recognized as source or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processSource(ctx, file, enc, src, dst, localDir(filepath.Dir(path)), j, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds sources under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, j job, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, enc, err := isSourceInArchive(f, j.kind)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", arc), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !ok {
			log.Debug("Skipping file, not recognized as source", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		local := localArchive(path, f.FileHeader.Name)
		if err := processSource(ctx, r, enc, filepath.Join(pathOut, filepath.FromSlash(pathInArchive)), dst, local, j, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processSource processes a single source. "src" is part of the source path
// (always including file name) relative to the original path. "local"
// resolves sibling references for documents, nil when the origin cannot
// serve them.
func processSource(ctx context.Context, r io.Reader, enc srcEncoding, src, dst string, local localReader, j job, log *zap.Logger) error {
	if j.kind == KindDocument {
		// the html parser does its own BOM and meta charset handling, it has
		// to see the raw bytes
		return processDoc(ctx, r, src, dst, local, j, log)
	}
	return processSheet(ctx, selectReader(r, enc), src, dst, j, log)
}

// processSheet rewrites a single stylesheet. "dst" is the destination
// directory where the rewritten text should be written.
func processSheet(ctx context.Context, r io.Reader, src, dst string, j job, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Rewrite starting", zap.String("from", src))
	defer func(start time.Time) {
		log.Info("Rewrite completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
	}(time.Now())

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet (%s): %w", src, err)
	}

	res := transpile.New(transpile.NewRegistry(), j.topts, log).Process(string(data))
	diagText := logDiagnostics(res.Diagnostics, src, log)

	out := res.CSS
	if j.pretty {
		out = res.Sheet.Pretty()
	}

	values := buildValues(src, KindStylesheet, ".css", len(res.Descriptors))
	outputName = buildOutputPath(values, src, dst, ".css", env)

	if err := ensureWritable(outputName, env, log); err != nil {
		return err
	}
	if err := os.WriteFile(outputName, []byte(out), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	if j.dump {
		fmt.Fprint(os.Stdout, dumpDescriptors(res.Descriptors))
	}
	storeResult(env, outputName, dst, diagText, log)
	return nil
}

// transpileStream rewrites a single stylesheet between streams. Descriptor
// dumps go to stderr so the rewritten text stays pipeable.
func transpileStream(ctx context.Context, r io.Reader, w io.Writer, j job, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	text, err := decodeText(data)
	if err != nil {
		return fmt.Errorf("unable to decode stylesheet: %w", err)
	}

	res := transpile.New(transpile.NewRegistry(), j.topts, log).Process(text)
	diagText := logDiagnostics(res.Diagnostics, "stdin", log)

	out := res.CSS
	if j.pretty {
		out = res.Sheet.Pretty()
	}
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	if j.dump {
		fmt.Fprint(os.Stderr, dumpDescriptors(res.Descriptors))
	}

	if env.Rpt != nil {
		env.Rpt.StoreData("result-stdin.css", []byte(out))
		if len(diagText) > 0 {
			env.Rpt.StoreData("diagnostics-stdin.txt", diagText)
		}
	}
	return nil
}

// ensureWritable verifies that the output location is usable honoring the
// overwrite flag and creates missing directories.
func ensureWritable(outputName string, env *state.LocalEnv, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// storeResult files the written output and its diagnostics under the debug
// report when one was requested.
func storeResult(env *state.LocalEnv, outputName, dst string, diagText []byte, log *zap.Logger) {
	if env.Rpt == nil {
		return
	}
	rel := strings.TrimPrefix(outputName, dst+string(filepath.Separator))
	rel = strings.ReplaceAll(rel, string(filepath.Separator), "_")
	if err := env.Rpt.StoreCopy("result-"+rel, outputName); err != nil {
		log.Warn("Unable to store result in the report", zap.String("file", outputName), zap.Error(err))
	}
	if len(diagText) > 0 {
		env.Rpt.StoreData("diagnostics-"+rel+".txt", diagText)
	}
}
