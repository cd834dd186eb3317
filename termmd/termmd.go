// Package termmd renders Markdown as styled terminal text.
//
// Markdown (including GFM tables, strikethrough and task lists) is parsed
// with goldmark and written out with lipgloss styles. Features a terminal
// can't show are approximated:
//   - Links become "text (url)"
//   - Images become "[image: alt] (url)"
//   - Tables become one "header: value" block per row
//   - Horizontal rules become a line of box-drawing dashes
package termmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	italicStyle  = lipgloss.NewStyle().Italic(true)
	strikeStyle  = lipgloss.NewStyle().Strikethrough(true)
	codeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	linkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("4"))
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	quoteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	defaultRuleWidth = 20
	quotePrefix      = "│ "
	codeIndent       = "    "
)

// Render converts Markdown to styled text. Paragraphs are word-wrapped to
// width; a width of zero or less disables wrapping.
func Render(markdown string, width int) string {
	source := []byte(markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	r := &renderer{source: source, width: width}
	r.walkBlock(doc)
	return strings.TrimRight(r.buf.String(), "\n ")
}

type renderer struct {
	source    []byte
	buf       bytes.Buffer
	width     int
	listDepth int
}

// wrap word-wraps s to the renderer width and strips the padding lipgloss
// adds to short lines.
func (r *renderer) wrap(s string, indent int) string {
	w := r.width - indent
	if r.width <= 0 || w <= 0 {
		return s
	}
	wrapped := lipgloss.NewStyle().Width(w).Render(s)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

// ---------------------------------------------------------------------------
// Block-level rendering
// ---------------------------------------------------------------------------

func (r *renderer) walkBlock(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.block(c)
	}
}

func (r *renderer) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.Document:
		r.walkBlock(n)

	case *ast.Heading:
		r.buf.WriteString(headingStyle.Render(strings.Repeat("#", n.Level) + " " + r.textContent(n)))
		r.buf.WriteString("\n\n")

	case *ast.Paragraph:
		r.buf.WriteString(r.wrap(r.inlineString(n), 0))
		r.buf.WriteString("\n\n")

	case *ast.TextBlock:
		r.buf.WriteString(r.inlineString(n))
		r.buf.WriteString("\n")

	case *ast.Blockquote:
		sub := &renderer{source: r.source, width: r.width - lipgloss.Width(quotePrefix)}
		sub.walkBlock(n)
		body := strings.TrimRight(sub.buf.String(), "\n ")
		for _, line := range strings.Split(body, "\n") {
			r.buf.WriteString(quoteStyle.Render(quotePrefix))
			r.buf.WriteString(line)
			r.buf.WriteByte('\n')
		}
		r.buf.WriteByte('\n')

	case *ast.List:
		r.list(n)

	case *ast.ListItem:
		// Handled inside list(); fallback.
		r.walkBlock(n)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(r.source)); lang != "" {
			r.buf.WriteString(urlStyle.Render(lang))
			r.buf.WriteByte('\n')
		}
		r.writeCode(n)
		r.buf.WriteByte('\n')

	case *ast.CodeBlock:
		r.writeCode(n)
		r.buf.WriteByte('\n')

	case *ast.ThematicBreak:
		w := r.width
		if w <= 0 {
			w = defaultRuleWidth
		}
		r.buf.WriteString(ruleStyle.Render(strings.Repeat("─", w)))
		r.buf.WriteString("\n\n")

	case *ast.HTMLBlock:
		r.writeLines(n)
		r.buf.WriteString("\n")

	default:
		if t, ok := node.(*east.Table); ok {
			r.table(t)
			return
		}
		if node.HasChildren() {
			r.walkBlock(node)
		}
	}
}

// writeCode writes a code block indented, one styled line at a time.
func (r *renderer) writeCode(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.source)), "\n")
		r.buf.WriteString(codeIndent)
		r.buf.WriteString(codeStyle.Render(line))
		r.buf.WriteByte('\n')
	}
}

// writeLines writes the raw source lines of a block node.
func (r *renderer) writeLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		r.buf.Write(seg.Value(r.source))
	}
}

// ---------------------------------------------------------------------------
// Inline rendering
// ---------------------------------------------------------------------------

// inlineString renders the inline children of n into a fresh string.
func (r *renderer) inlineString(n ast.Node) string {
	sub := &renderer{source: r.source, width: r.width, listDepth: r.listDepth}
	sub.inlines(n)
	return sub.buf.String()
}

func (r *renderer) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c)
	}
}

func (r *renderer) inline(node ast.Node) {
	switch n := node.(type) {
	case *ast.Text:
		r.buf.Write(n.Text(r.source))
		if n.SoftLineBreak() {
			r.buf.WriteByte(' ')
		}
		if n.HardLineBreak() {
			r.buf.WriteByte('\n')
		}

	case *ast.String:
		r.buf.Write(n.Value)

	case *ast.Emphasis:
		style := italicStyle
		if n.Level == 2 {
			style = boldStyle
		}
		r.buf.WriteString(style.Render(r.inlineString(n)))

	case *ast.CodeSpan:
		r.buf.WriteString(codeStyle.Render(r.textContent(n)))

	case *ast.Link:
		label := r.inlineString(n)
		dest := string(n.Destination)
		r.buf.WriteString(linkStyle.Render(label))
		if dest != "" && dest != r.textContent(n) {
			r.buf.WriteString(" ")
			r.buf.WriteString(urlStyle.Render("(" + dest + ")"))
		}

	case *ast.AutoLink:
		r.buf.WriteString(linkStyle.Render(string(n.URL(r.source))))

	case *ast.Image:
		alt := r.textContent(n)
		if alt == "" {
			alt = "image"
		} else {
			alt = "image: " + alt
		}
		fmt.Fprintf(&r.buf, "[%s] %s", alt, urlStyle.Render("("+string(n.Destination)+")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			r.buf.Write(seg.Value(r.source))
		}

	default:
		// GFM extensions
		switch v := node.(type) {
		case *east.Strikethrough:
			r.buf.WriteString(strikeStyle.Render(r.inlineString(v)))
		case *east.TaskCheckBox:
			if v.IsChecked {
				r.buf.WriteString("[x] ")
			} else {
				r.buf.WriteString("[ ] ")
			}
		default:
			if node.HasChildren() {
				r.inlines(node)
			}
		}
	}
}

// textContent returns the plain-text content of a node tree.
func (r *renderer) textContent(n ast.Node) string {
	var buf bytes.Buffer
	r.collectText(n, &buf)
	return buf.String()
}

func (r *renderer) collectText(node ast.Node, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Text(r.source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			r.collectText(c, buf)
		}
	}
}

// ---------------------------------------------------------------------------
// List rendering
// ---------------------------------------------------------------------------

func (r *renderer) list(n *ast.List) {
	idx := 0
	if n.Start > 0 {
		idx = n.Start - 1
	}
	indent := strings.Repeat("  ", r.listDepth)

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		item, ok := child.(*ast.ListItem)
		if !ok {
			continue
		}
		if n.IsOrdered() {
			idx++
			fmt.Fprintf(&r.buf, "%s%d. ", indent, idx)
		} else {
			r.buf.WriteString(indent)
			r.buf.WriteString("• ")
		}
		r.listItemContent(item)
		r.buf.WriteByte('\n')
	}
	if r.listDepth == 0 {
		r.buf.WriteByte('\n')
	}
}

func (r *renderer) listItemContent(item *ast.ListItem) {
	cont := strings.Repeat("  ", r.listDepth+1)
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			if !first {
				r.buf.WriteByte('\n')
				r.buf.WriteString(cont)
			}
			text := r.wrap(r.inlineString(n), len(cont))
			r.buf.WriteString(strings.ReplaceAll(text, "\n", "\n"+cont))
			first = false
		case *ast.List:
			r.buf.WriteByte('\n')
			r.listDepth++
			r.list(n)
			r.listDepth--
			// Nested list output ends with its own newline.
			r.buf.Truncate(len(bytes.TrimRight(r.buf.Bytes(), "\n")))
		default:
			r.block(c)
			first = false
		}
	}
}

// ---------------------------------------------------------------------------
// Table rendering (GFM)
// ---------------------------------------------------------------------------

func (r *renderer) table(t *east.Table) {
	var rows [][]string
	headerIdx := -1

	for child := t.FirstChild(); child != nil; child = child.NextSibling() {
		var cells []string
		switch row := child.(type) {
		case *east.TableHeader:
			headerIdx = len(rows)
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, r.textContent(cell))
			}
		case *east.TableRow:
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, r.textContent(cell))
			}
		default:
			continue
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	numCols := 0
	for _, row := range rows {
		numCols = max(numCols, len(row))
	}
	for i := range rows {
		for len(rows[i]) < numCols {
			rows[i] = append(rows[i], "")
		}
	}

	headers := make([]string, numCols)
	dataRows := rows
	if headerIdx >= 0 {
		copy(headers, rows[headerIdx])
		dataRows = append(rows[:headerIdx:headerIdx], rows[headerIdx+1:]...)
	}
	for i := range headers {
		if strings.TrimSpace(headers[i]) == "" {
			headers[i] = fmt.Sprintf("Column %d", i+1)
		}
	}

	for i, row := range dataRows {
		r.buf.WriteString(boldStyle.Render(fmt.Sprintf("%d.", i+1)))
		r.buf.WriteByte('\n')
		for j, cell := range row {
			fmt.Fprintf(&r.buf, "  %s: %s\n", boldStyle.Render(headers[j]), cell)
		}
		if i < len(dataRows)-1 {
			r.buf.WriteByte('\n')
		}
	}
	r.buf.WriteByte('\n')
}
