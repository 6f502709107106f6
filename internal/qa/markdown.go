package qa

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/docuchat/docuchat/internal/retrieval"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// renderHTML converts answer Markdown to HTML for web clients.
func renderHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// sourcesFooter renders the provenance block appended to answers:
// one line per file with its cited pages in order.
func sourcesFooter(sources []retrieval.Source) string {
	if len(sources) == 0 {
		return ""
	}

	pagesByFile := make(map[string][]int)
	var order []string
	for _, s := range sources {
		if _, ok := pagesByFile[s.Filename]; !ok {
			order = append(order, s.Filename)
		}
		pagesByFile[s.Filename] = append(pagesByFile[s.Filename], s.Page)
	}

	var b strings.Builder
	b.WriteString("\n\n---\n**Sources:**\n")
	for _, name := range order {
		pages := pagesByFile[name]
		sort.Ints(pages)
		parts := make([]string, 0, len(pages))
		seen := make(map[int]bool)
		for _, p := range pages {
			if seen[p] {
				continue
			}
			seen[p] = true
			parts = append(parts, fmt.Sprintf("%d", p))
		}
		if len(parts) == 1 {
			fmt.Fprintf(&b, "- %s — page %s\n", name, parts[0])
		} else {
			fmt.Fprintf(&b, "- %s — pages %s\n", name, strings.Join(parts, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
