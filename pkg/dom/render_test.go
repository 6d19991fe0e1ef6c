package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/cadview/internal/errors"
)

func samplePage() *Document {
	doc := New("html", A("lang", "en"))
	head, _ := doc.Append(doc.Root(), "head")
	doc.Append(head, "meta", WithAttr("charset", "utf-8"))
	doc.Append(head, "title", WithText("Viewer"))
	body, _ := doc.Append(doc.Root(), "body")
	app, _ := doc.Append(body, "div", WithAttr("id", "app"), WithClass("container", "p-4"))
	doc.Append(app, "h1", WithText("Hello"))
	return doc
}

func TestRender_Page(t *testing.T) {
	want := `<html lang="en"><head><meta charset="utf-8"><title>Viewer</title></head>` +
		`<body><div id="app" class="container p-4"><h1>Hello</h1></div></body></html>`
	assert.Equal(t, want, samplePage().String())
}

func TestRender_Idempotent(t *testing.T) {
	doc := samplePage()
	first := doc.String()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, doc.String())
	}
}

func TestRender_Escaping(t *testing.T) {
	doc := New("p", A("title", `a "quoted" <value>`+"\n"))
	require.NoError(t, doc.SetText(doc.Root(), `<script>alert('x') & more</script>`))

	assert.Equal(t,
		`<p title="a &quot;quoted&quot; &lt;value&gt;&#10;">&lt;script&gt;alert(&#39;x&#39;) &amp; more&lt;/script&gt;</p>`,
		doc.String())
}

func TestEscapers(t *testing.T) {
	tests := []struct {
		in, text, attr string
	}{
		{"plain", "plain", "plain"},
		{"a&b", "a&amp;b", "a&amp;b"},
		{"&amp;", "&amp;amp;", "&amp;amp;"},
		{"<'\">", "&lt;&#39;&quot;&gt;", "&lt;&#39;&quot;&gt;"},
		{"x\ty\r\nz", "x\ty\r\nz", "x&#9;y&#13;&#10;z"},
		{"héllo ✓", "héllo ✓", "héllo ✓"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.text, textEscaper.Replace(tt.in), "text %q", tt.in)
		assert.Equal(t, tt.attr, attrEscaper.Replace(tt.in), "attr %q", tt.in)
	}
}

func TestRender_VoidTagsIgnoreContent(t *testing.T) {
	for tag := range voidElements {
		t.Run(tag, func(t *testing.T) {
			doc := New("div")
			v, _ := doc.Append(doc.Root(), tag, WithText("ignored"), WithAttr("data-k", "v"))
			_, err := doc.Append(v, "span", WithText("child"))
			require.NoError(t, err)

			out := doc.String()
			assert.Equal(t, `<div><`+tag+` data-k="v"></div>`, out)
			assert.NotContains(t, out, "</"+tag+">")
			assert.NotContains(t, out, "ignored")
			assert.NotContains(t, out, "child")
		})
	}
}

func TestRender_Subtree(t *testing.T) {
	doc := samplePage()
	ids, err := doc.Query("h1")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	s, err := doc.RenderString(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello</h1>", s)

	_, err = doc.RenderString(77)
	assert.True(t, errors.Is(err, errors.ErrInvalidReference))
}

func TestPretty(t *testing.T) {
	doc := New("ul")
	doc.Append(doc.Root(), "li", WithText("one"), WithAttr("class", "first"))

	var sb strings.Builder
	require.NoError(t, doc.Pretty(&sb))
	assert.Equal(t, "<ul>\n  <li class=\"first\"> \"one\"\n", sb.String())
}
