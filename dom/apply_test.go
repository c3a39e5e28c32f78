package dom_test

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/devknoll/container-query-polyfill/common"
	"github.com/devknoll/container-query-polyfill/css"
	"github.com/devknoll/container-query-polyfill/dom"
	"github.com/devknoll/container-query-polyfill/layout"
	"github.com/devknoll/container-query-polyfill/query"
	"github.com/devknoll/container-query-polyfill/transpile"
)

// prepare runs the whole static pipeline over a page with one embedded
// stylesheet: rewrite the sheet, swap its text, adopt the document and bind
// an engine.
func prepare(t *testing.T, page string) (*dom.Document, *layout.Engine, *transpile.Result) {
	t.Helper()
	log := zaptest.NewLogger(t)

	docNode := parsePage(t, page)
	sources := dom.FindStyleSources(docNode)
	if len(sources) != 1 {
		t.Fatalf("found %d style sources, want 1", len(sources))
	}

	reg := transpile.NewRegistry()
	res := transpile.New(reg, transpile.Options{}, log).Process(sources[0].Inline)
	dom.SetStyleText(sources[0], res.CSS)

	d, err := dom.NewDocument(docNode, dom.Options{Sheets: []*css.Sheet{res.Sheet}, Log: log})
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	eng := layout.NewEngine(d.Root(), d.Host(), reg, log)
	t.Cleanup(eng.Close)
	eng.AddSheet(res.Descriptors)

	if err := d.Apply(eng); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return d, eng, res
}

func TestApply_ActivatesContainerRule(t *testing.T) {
	d, eng, res := prepare(t, `<!DOCTYPE html>
<html><head>
<style>
.sidebar { width: 400px; container-type: inline-size; }
@container (min-width: 300px) { .card { font-size: 24px; } }
</style>
</head>
<body><div class="sidebar"><div class="card">hi</div></div></body></html>`)

	if len(res.Descriptors) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(res.Descriptors))
	}
	uid := res.Descriptors[0].UID
	sidebar, card := d.First(".sidebar"), d.First(".card")

	st, ok := eng.StateOf(sidebar)
	if !ok {
		t.Fatal("no state for the container")
	}
	if st.Class != layout.ClassQueryContainer {
		t.Errorf("container class = %v, want %v", st.Class, layout.ClassQueryContainer)
	}
	if st.Width != 400 {
		t.Errorf("container width = %v, want 400", st.Width)
	}
	if cs := st.Conditions[uid]; !cs.Container || cs.Condition != query.True {
		t.Errorf("condition state = %+v, want held", cs)
	}

	if got := card.Attr(common.DataAttr); got != uid {
		t.Errorf("card %s = %q, want %q", common.DataAttr, got, uid)
	}
	// with the attribute in place the rewritten rule applies
	if got := d.ComputedStyle(card, "font-size"); got != "24px" {
		t.Errorf("card font-size = %q, want 24px", got)
	}
	// the container itself is not targeted by the rule
	if got := sidebar.Attr(common.DataAttr); got != "" {
		t.Errorf("sidebar %s = %q, want empty", common.DataAttr, got)
	}
}

func TestApply_ShrinkRetractsEverything(t *testing.T) {
	d, eng, res := prepare(t, `<!DOCTYPE html>
<html><head>
<style>
.sidebar { width: 400px; container-type: inline-size; }
@container (min-width: 300px) { .card { font-size: 24px; } }
</style>
</head>
<body><div class="sidebar"><div class="card">hi</div></div></body></html>`)

	uid := res.Descriptors[0].UID
	sidebar, card := d.First(".sidebar"), d.First(".card")

	// inline style outranks the sheet, so this shrinks the container
	d.SetAttribute(sidebar, "style", "width: 250px")
	if err := d.Apply(eng); err != nil {
		t.Fatalf("Apply after shrink: %v", err)
	}

	st, _ := eng.StateOf(sidebar)
	if st.Width != 250 {
		t.Errorf("container width = %v, want 250", st.Width)
	}
	if cs := st.Conditions[uid]; cs.Container || cs.Condition != query.False {
		t.Errorf("condition state = %+v, want retracted", cs)
	}
	if got := card.Attr(common.DataAttr); got != "" {
		t.Errorf("card %s = %q, want removed", common.DataAttr, got)
	}
	if got := d.ComputedStyle(card, "font-size"); got != "16px" {
		t.Errorf("card font-size = %q, want the default 16px", got)
	}
}

func TestApply_Idempotent(t *testing.T) {
	d, eng, _ := prepare(t, `<!DOCTYPE html>
<html><head>
<style>
.sidebar { width: 400px; container-type: inline-size; }
@container (min-width: 300px) { .card { font-size: 24px; } }
</style>
</head>
<body><div class="sidebar"><div class="card">hi</div></div></body></html>`)

	writes := d.Writes()
	if err := d.Apply(eng); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if d.Writes() != writes {
		t.Errorf("second Apply performed %d extra writes", d.Writes()-writes)
	}
}

func TestBakeAndRender(t *testing.T) {
	d, eng, res := prepare(t, `<!DOCTYPE html>
<html><head>
<style>
.sidebar { container-type: inline-size; }
@container (min-width: 300px) { .card { font-size: 24px; } }
</style>
</head>
<body><div class="sidebar" style="width: 400px"><div class="card">hi</div></div></body></html>`)
	_ = eng

	d.Bake()
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := sb.String()

	uid := res.Descriptors[0].UID
	if !strings.Contains(out, common.DataAttr+`="`+uid+`"`) {
		t.Errorf("rendered output is missing the published attribute:\n%s", out)
	}
	// 400px wide inline-size container publishes 4px per unit step, folded
	// into the style attribute after the author's own declarations
	if !strings.Contains(out, "width: 400px; --cq-cqi: 4px; --cq-cqw: 4px") {
		t.Errorf("rendered output is missing the baked unit properties:\n%s", out)
	}
}
