package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForSlackBold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single bold span",
			input: "This is **bold** text",
			want:  "This is *bold* text",
		},
		{
			name:  "multiple bold spans",
			input: "**a** and **b**",
			want:  "*a* and *b*",
		},
		{
			name:  "non-greedy across spans",
			input: "**first** middle **second**",
			want:  "*first* middle *second*",
		},
		{
			name:  "unclosed marker left verbatim",
			input: "this ** never closes",
			want:  "this ** never closes",
		},
		{
			name:  "single asterisks untouched",
			input: "already *slack* style",
			want:  "already *slack* style",
		},
		{
			name:  "marker pair split across lines left verbatim",
			input: "**multi\nline**",
			want:  "**multi\nline**",
		},
		{
			name:  "no markdown",
			input: "plain text",
			want:  "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForSlack(tt.input))
		})
	}
}

func TestFormatForSlackTables(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single row table, no separator emitted",
			input: "|a|bb|",
			want:  "```\na | bb\n```",
		},
		{
			name:  "header and one data row",
			input: "| Name | Age |\n|------|-----|\n| Bob | 30 |",
			want:  "```\nName | Age\n-----|----\nBob  | 30 \n```",
		},
		{
			name:  "emphasis does not count toward width",
			input: "| Name | Age |\n|------|-----|\n| **Bob** | 30 |",
			want:  "```\nName | Age\n-----|----\nBob  | 30 \n```",
		},
		{
			name:  "alignment separator discarded",
			input: "| x | y |\n|:--|--:|\n| 1 | 2 |",
			want:  "```\nx | y\n--|--\n1 | 2\n```",
		},
		{
			name:  "extra cells beyond header dropped",
			input: "| a | b |\n| 1 | 2 | 3 |",
			want:  "```\na | b\n--|--\n1 | 2\n```",
		},
		{
			name:  "short row renders only its cells",
			input: "| a | b |\n| 1 |",
			want:  "```\na | b\n--|--\n1\n```",
		},
		{
			name:  "all-separator block renders empty fence",
			input: "|---|---|\n|:-:|:-:|",
			want:  "```\n\n```",
		},
		{
			name:  "table between prose",
			input: "before\n| h |\nafter",
			want:  "before\n```\nh\n```\nafter",
		},
		{
			name:  "two separate tables",
			input: "| a |\n\n| b |",
			want:  "```\na\n```\n\n```\nb\n```",
		},
		{
			name:  "indented rows still qualify",
			input: "  | a | b |\n  | 1 | 2 |",
			want:  "```\na | b\n--|--\n1 | 2\n```",
		},
		{
			name:  "pipe line without trailing pipe is not a row",
			input: "| not | a table",
			want:  "| not | a table",
		},
		{
			name:  "column width tracks widest cell",
			input: "| id | name |\n| 1 | Alexander |",
			want:  "```\nid | name     \n---|----------\n1  | Alexander\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForSlack(tt.input))
		})
	}
}

func TestFormatForSlackBoldInsideTable(t *testing.T) {
	// The bold rewrite runs first, then the reflow strips every remaining
	// asterisk from cells, so emphasis never reaches the fenced output.
	got := FormatForSlack("| **Status** | Result |\n|---|---|\n| *ok* | **pass** |")
	assert.Equal(t, "```\nStatus | Result\n-------|-------\nok     | pass  \n```", got)
}

func TestFormatForSlackIdempotent(t *testing.T) {
	inputs := []string{
		"This is **bold** text",
		"| Name | Age |\n|------|-----|\n| Bob | 30 |",
		"plain text\nwith lines",
		"before\n| h |\nafter",
	}
	for _, in := range inputs {
		once := FormatForSlack(in)
		assert.Equal(t, once, FormatForSlack(once))
	}
}

func TestFormatForSlackPreservesSurroundingText(t *testing.T) {
	input := "# Heading\n\nSome *italic* and `code`.\n\n- list item\n"
	assert.Equal(t, input, FormatForSlack(input))
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bold and italic removed",
			input: "**bold** and *italic* and __under__",
			want:  "bold and italic and under",
		},
		{
			name:  "link flattened",
			input: "see [docs](https://example.com)",
			want:  "see docs (https://example.com)",
		},
		{
			name:  "heading and quote markers removed",
			input: "# Title\n> quoted",
			want:  "Title\nquoted",
		},
		{
			name:  "code fence unwrapped",
			input: "```go\nfmt.Println(1)\n```",
			want:  "fmt.Println(1)",
		},
		{
			name:  "inline code unwrapped",
			input: "run `make test` now",
			want:  "run make test now",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.input))
		})
	}
}
