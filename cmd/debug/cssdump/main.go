// cssdump tokenizes and parses CSS with the same code paths the rewriter
// uses and dumps the results for inspection: the raw token stream, the
// permissive rule tree, and the rewritten stylesheet text.
//
// Input can be a .css file or "-" for STDIN.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/transpile"
	"github.com/devknoll/container-query-polyfill/utils/debug"
)

func main() {
	all := flag.Bool("all", false, "enable all dump flags (-tokens, -tree, -rewrite)")
	tokens := flag.Bool("tokens", false, "dump token stream into <file>-tokens.txt")
	tree := flag.Bool("tree", false, "dump parsed rule tree into <file>-tree.txt")
	rewrite := flag.Bool("rewrite", false, "rewrite @container rules and write result into <file>-rewrite.css")
	pretty := flag.Bool("pretty", false, "reindent the rewritten stylesheet")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cssdump [-all] [-tokens] [-tree] [-rewrite] [-pretty] [-overwrite] <file.css|-> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Tokenizes and parses CSS the way the rewriter does and dumps the results.\n")
		fmt.Fprintf(os.Stderr, "With \"-\" the stylesheet comes from STDIN and every dump goes to STDOUT.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	if *all {
		*tokens = true
		*tree = true
		*rewrite = true
	}

	if !*tokens && !*tree && !*rewrite {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	var (
		src []byte
		err error
	)
	if inPath == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(inPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", inPath, err)
		os.Exit(1)
	}
	text := string(src)

	if *tokens {
		if err := emit(inPath, outDir, "-tokens.txt", []byte(dumpTokens(text)), *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "dump tokens: %v\n", err)
			os.Exit(1)
		}
	}

	if *tree {
		if err := emit(inPath, outDir, "-tree.txt", []byte(dumpTree(css.Parse(text))), *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "dump tree: %v\n", err)
			os.Exit(1)
		}
	}

	if *rewrite {
		res := transpile.New(transpile.NewRegistry(), transpile.Options{}, zap.NewNop()).Process(text)
		for _, d := range res.Diagnostics {
			fmt.Fprintf(os.Stderr, "%s\n", d)
		}
		out := res.CSS
		if *pretty {
			out = res.Sheet.Pretty()
		}
		if err := emit(inPath, outDir, "-rewrite.css", []byte(out), *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "rewrite: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "registered %d container descriptor(s)\n", len(res.Descriptors))
	}
}

// emit writes one dump next to the input (or into outdir). STDIN input sends
// everything to STDOUT with a separating header.
func emit(inPath, outDir, suffix string, data []byte, overwrite bool) error {
	if inPath == "-" {
		fmt.Printf("==== %s\n", strings.TrimSuffix(strings.TrimPrefix(suffix, "-"), filepath.Ext(suffix)))
		_, err := os.Stdout.Write(data)
		return err
	}

	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+suffix)

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}

// dumpTokens renders one token per line: byte offset, kind and raw text.
func dumpTokens(text string) string {
	var sb strings.Builder
	count := 0
	for t := range css.Tokenize(text) {
		fmt.Fprintf(&sb, "%6d %-12s %q", t.Start, t.Kind, t.Raw)
		switch t.Kind {
		case css.KindNumber, css.KindPercentage:
			fmt.Fprintf(&sb, " value=%g integer=%t", t.Value, t.Integer)
		case css.KindDimension:
			fmt.Fprintf(&sb, " value=%g unit=%q", t.Value, t.Unit)
		}
		sb.WriteByte('\n')
		count++
	}
	fmt.Fprintf(&sb, "%d token(s)\n", count)
	return sb.String()
}

// dumpTree renders the permissive rule tree the parser produced, one node
// per line nested by depth.
func dumpTree(sheet *css.Sheet) string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "sheet: %d rule(s)", len(sheet.Rules))
	dumpRules(tw, sheet.Rules, 1)
	return tw.String()
}

func dumpRules(tw *debug.TreeWriter, rules []css.Rule, depth int) {
	for _, r := range rules {
		switch {
		case r.At != nil:
			if r.At.Block == nil {
				tw.Line(depth, "at-rule @%s (statement)", r.At.Name())
				tw.TextBlock(depth+1, "prelude", css.ComponentsTextNormalized(r.At.Prelude))
				continue
			}
			tw.Line(depth, "at-rule @%s: %d rule(s)", r.At.Name(), len(r.At.Block.Rules))
			tw.TextBlock(depth+1, "prelude", css.ComponentsTextNormalized(r.At.Prelude))
			dumpRules(tw, r.At.Block.Rules, depth+1)
		case r.Qualified != nil:
			tw.Line(depth, "rule: %d item(s)", len(r.Qualified.Block.Rules))
			tw.TextBlock(depth+1, "prelude", css.ComponentsTextNormalized(r.Qualified.Prelude))
			dumpRules(tw, r.Qualified.Block.Rules, depth+1)
		case r.Declaration != nil:
			if r.Declaration.Important {
				tw.Line(depth, "declaration: %s: %s !important", r.Declaration.Name.Name(), css.ComponentsTextNormalized(r.Declaration.Value))
			} else {
				tw.Line(depth, "declaration: %s: %s", r.Declaration.Name.Name(), css.ComponentsTextNormalized(r.Declaration.Value))
			}
		default:
			tw.TextBlock(depth, "raw", css.ComponentsTextNormalized(r.Raw))
		}
	}
}
