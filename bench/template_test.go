package template_test

import (
	"bytes"
	"fmt"
	"html/template"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/dangdungcntt/go-blade/v2"
)

// makeLargeTemplate tạo một template có đủ kích thước/độ phức tạp
// để chi phí parse/clone/execute rõ rệt trong benchmark.
func makeLargeTemplate(withStacks bool) string {
	var b bytes.Buffer
	b.WriteString(`{{define "row"}}<div class="row">{{.Index}}: {{.Text}}</div>{{end}}`)
	if withStacks {
		b.WriteString("\n<head>@stack('scripts')</head>")
	}
	b.WriteString("\n<ul>\n")
	b.WriteString(`{{range $i, $it := .Items}}<li>{{template "row" (dict "Index" $i "Text" $it)}}</li>{{end}}`)
	b.WriteString("\n</ul>\n")
	if withStacks {
		b.WriteString(`{{range .Items}}@push('scripts')<script src="/{{ . }}.js"></script>@endpush{{end}}`)
	}
	for i := range 20 {
		b.WriteString("\n<!-- block " + template.HTMLEscaper(i) + " -->")
	}
	return b.String()
}

var funcs = template.FuncMap{
	"dict": func(v ...any) map[string]any {
		dict := map[string]any{}
		lenv := len(v)
		for i := 0; i < lenv; i += 2 {
			key := fmt.Sprint(v[i])
			if i+1 >= lenv {
				dict[key] = ""
				continue
			}
			dict[key] = v[i+1]
		}
		return dict
	},
}

type viewData struct {
	Items []string
}

func benchData() viewData {
	items := make([]string, 100)
	for i := range items {
		items[i] = "item-" + template.HTMLEscaper(i)
	}
	return viewData{Items: items}
}

func newBenchEngine(b *testing.B) *blade.Engine {
	e := blade.NewEngineFS(fstest.MapFS{
		"plain.html":  {Data: []byte(makeLargeTemplate(false))},
		"stacks.html": {Data: []byte(makeLargeTemplate(true))},
	})
	for k, v := range funcs {
		e.FuncMap[k] = v
	}
	require.NoError(b, e.Load(), "load templates failed")
	return e
}

// Baseline: reuse parsed template and Execute directly (concurrent-safe)
func Benchmark_Template_CachedExecute(b *testing.B) {
	t, err := template.New("big").Funcs(funcs).Parse(makeLargeTemplate(false))
	require.NoError(b, err, "parse template failed")

	data := benchData()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := t.Execute(&buf, data); err != nil {
				b.Fatalf("execute failed: %v", err)
			}
		}
	})
}

// Engine render without stacks: clone + execute + resolve
func Benchmark_Engine_Render(b *testing.B) {
	benchmarkEngine(b, "plain")
}

// Engine render with 100 pushes to one stack
func Benchmark_Engine_RenderStacks(b *testing.B) {
	benchmarkEngine(b, "stacks")
}

func benchmarkEngine(b *testing.B, entry string) {
	e := newBenchEngine(b)
	data := benchData()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := e.Render(&buf, entry, data); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}
