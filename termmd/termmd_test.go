package termmd

import (
	"regexp"
	"strings"
	"testing"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// plain renders md without wrapping and strips styling.
func plain(md string) string {
	return ansiRE.ReplaceAllString(Render(md, 0), "")
}

func expect(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBasicText(t *testing.T) {
	expect(t, plain("Hello world"), "Hello world")
}

func TestInlineStylesKeepText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello **world**", "Hello world"},
		{"Hello *world*", "Hello world"},
		{"Hello ~~world~~", "Hello world"},
		{"Use `fmt.Println`", "Use fmt.Println"},
		{"a < b && c > d", "a < b && c > d"},
	}
	for _, tt := range tests {
		expect(t, plain(tt.in), tt.want)
	}
}

func TestHeadings(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"# Title", "# Title"},
		{"## Sub *title*", "## Sub title"},
	}
	for _, tt := range tests {
		expect(t, plain(tt.in), tt.want)
	}
}

func TestSoftLineBreakBecomesSpace(t *testing.T) {
	expect(t, plain("one\ntwo"), "one two")
}

func TestFencedCodeBlock(t *testing.T) {
	got := plain("```go\nfmt.Println(\"hi\")\nx := 1\n```")
	expect(t, got, "go\n    fmt.Println(\"hi\")\n    x := 1")
}

func TestLinks(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[Rules](https://example.com/rules)", "Rules (https://example.com/rules)"},
		{"<https://example.com>", "https://example.com"},
		{"![court](court.png)", "[image: court] (court.png)"},
	}
	for _, tt := range tests {
		expect(t, plain(tt.in), tt.want)
	}
}

func TestLists(t *testing.T) {
	got := plain("- one\n- two\n  - nested\n- three")
	expect(t, got, "• one\n• two\n  • nested\n• three")

	got = plain("3. c\n4. d")
	expect(t, got, "3. c\n4. d")
}

func TestTaskList(t *testing.T) {
	got := plain("- [x] done\n- [ ] todo")
	for _, want := range []string{"[x]", "done", "[ ]", "todo"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q, got: %q", want, got)
		}
	}
}

func TestBlockquote(t *testing.T) {
	got := plain("> first\n>\n> second")
	expect(t, got, "│ first\n│ \n│ second")
}

func TestBlockquoteWrapsToDisplayWidth(t *testing.T) {
	// The prefix takes two cells, leaving exactly fourteen for the text.
	got := ansiRE.ReplaceAllString(Render("> abcdefghij abc", 16), "")
	expect(t, got, "│ abcdefghij abc")
}

func TestThematicBreak(t *testing.T) {
	got := plain("above\n\n---\n\nbelow")
	expect(t, got, "above\n\n"+strings.Repeat("─", defaultRuleWidth)+"\n\nbelow")
}

func TestTable(t *testing.T) {
	md := "| Rule | Value |\n|---|---|\n| Players | 5 |\n| Quarters | 4 |"
	got := plain(md)
	want := "1.\n  Rule: Players\n  Value: 5\n\n2.\n  Rule: Quarters\n  Value: 4"
	expect(t, got, want)
}

func TestWrapping(t *testing.T) {
	got := ansiRE.ReplaceAllString(Render("the quick brown fox jumps over the lazy dog", 16), "")
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 16 {
			t.Errorf("line %q exceeds width 16", line)
		}
		if strings.HasSuffix(line, " ") {
			t.Errorf("line %q has trailing padding", line)
		}
	}
	if strings.Join(strings.Fields(got), " ") != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("wrapping changed words: %q", got)
	}
}

func TestEmptyInput(t *testing.T) {
	expect(t, plain(""), "")
}
