package convert

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/devknoll/container-query-polyfill/transpile"
)

func descriptorsFor(t *testing.T, src string) []*transpile.Descriptor {
	t.Helper()
	log := zaptest.NewLogger(t)
	res := transpile.New(transpile.NewRegistry(), transpile.Options{}, log).Process(src)
	return res.Descriptors
}

func TestDumpDescriptors_Empty(t *testing.T) {
	got := dumpDescriptors(nil)
	want := "containers: 0\n"
	if got != want {
		t.Errorf("dumpDescriptors() = %q, want %q", got, want)
	}
}

func TestDumpDescriptors(t *testing.T) {
	ds := descriptorsFor(t, `@container sidebar (min-width: 400px) { .card { color: red } }`)
	got := dumpDescriptors(ds)

	want := "containers: 1\n" +
		"  c0 (sidebar) (width >= 400px)\n" +
		"    scopes: \".card\"\n"
	if got != want {
		t.Errorf("dumpDescriptors() = %q, want %q", got, want)
	}
}

func TestDumpDescriptors_Anonymous(t *testing.T) {
	ds := descriptorsFor(t, `@container (orientation: landscape) { .card { color: red } }`)
	got := dumpDescriptors(ds)

	if !strings.Contains(got, "c0 (orientation = landscape)") {
		t.Errorf("dumpDescriptors() = %q, want anonymous descriptor line", got)
	}
	if strings.Contains(got, "c0 ()") {
		t.Errorf("dumpDescriptors() = %q, names should be omitted entirely", got)
	}
}

func TestDumpDescriptors_Nested(t *testing.T) {
	ds := descriptorsFor(t, `@container outer (min-width: 400px) {
  .a { color: red }
  @container inner (min-width: 200px) {
    .b { color: blue }
  }
}`)
	got := dumpDescriptors(ds)

	if !strings.Contains(got, "containers: 2\n") {
		t.Errorf("dumpDescriptors() = %q, want two descriptors", got)
	}
	if !strings.Contains(got, "\n  c0 (outer) (width >= 400px)\n") {
		t.Errorf("dumpDescriptors() = %q, missing outer line", got)
	}
	// the nested descriptor indents one level deeper than its parent
	if !strings.Contains(got, "\n    c1 (inner) (width >= 200px)\n") {
		t.Errorf("dumpDescriptors() = %q, missing indented inner line", got)
	}
}
