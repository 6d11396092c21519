package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reBold       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	reTableSep   = regexp.MustCompile(`^\|[\s\-|:]+\|$`)
	reCodeBlock  = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reBoldUnd    = regexp.MustCompile(`__(.+?)__`)
	reItalicAst  = regexp.MustCompile(`\*(.+?)\*`)
	reItalicUnd  = regexp.MustCompile(`_(.+?)_`)
	reStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reHorizontal = regexp.MustCompile(`(?m)^---+\s*$`)
	reBlockquote = regexp.MustCompile(`(?m)^>\s?`)
)

// FormatForSlack rewrites standard Markdown into Slack's mrkdwn dialect.
// Bold spans lose one asterisk pair (**x** → *x*), and pipe-delimited tables,
// which Slack cannot render natively, are re-emitted as monospace-aligned
// code blocks. Everything else passes through untouched. The function is
// total: malformed input degrades to a well-defined rendering, never an error.
func FormatForSlack(s string) string {
	// Unclosed ** pairs don't match the non-greedy pattern and stay verbatim.
	s = reBold.ReplaceAllString(s, "*$1*")
	return reflowTables(s)
}

// isTableRow reports whether a line is a candidate table row: its trimmed
// form starts and ends with a pipe.
func isTableRow(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && strings.HasPrefix(t, "|") && strings.HasSuffix(t, "|")
}

// reflowTables scans lines with a two-state loop: normal lines pass through,
// and each maximal run of table rows is replaced by a fenced rendering.
func reflowTables(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	i := 0
	for i < len(lines) {
		if !isTableRow(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}

		var rows [][]string
		for i < len(lines) && isTableRow(lines[i]) {
			trimmed := strings.TrimSpace(lines[i])
			i++
			// Header/body separators like |---|:--:| carry no data.
			if reTableSep.MatchString(trimmed) {
				continue
			}
			rows = append(rows, splitCells(trimmed))
		}

		// A block whose rows were all separators renders as an empty fence.
		out = append(out, "```")
		out = append(out, renderTable(rows)...)
		out = append(out, "```")
	}

	return strings.Join(out, "\n")
}

// splitCells extracts trimmed cell values from a row. The segments before the
// leading pipe and after the trailing pipe are empty by construction and are
// dropped.
func splitCells(trimmed string) []string {
	parts := strings.Split(trimmed, "|")
	cells := parts[1 : len(parts)-1]
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// renderTable lays rows out as fixed-width columns joined by " | ". Row 0 is
// the header: it fixes the column count, and a dash separator is emitted
// beneath it when data rows follow. Cells beyond the header's column count
// are dropped; short rows render only the cells they have.
func renderTable(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	numCols := len(rows[0])
	widths := make([]int, numCols)
	for _, row := range rows {
		for c, cell := range row {
			if c >= numCols {
				break
			}
			if w := utf8.RuneCountInString(stripEmphasis(cell)); w > widths[c] {
				widths[c] = w
			}
		}
	}

	out := make([]string, 0, len(rows)+1)
	for r, row := range rows {
		cells := make([]string, 0, numCols)
		for c, cell := range row {
			if c >= numCols {
				break
			}
			cells = append(cells, ljust(stripEmphasis(cell), widths[c]))
		}
		out = append(out, strings.Join(cells, " | "))

		if r == 0 && len(rows) > 1 {
			dashes := make([]string, numCols)
			for c, w := range widths {
				dashes[c] = strings.Repeat("-", w)
			}
			out = append(out, strings.Join(dashes, "-|-"))
		}
	}
	return out
}

// stripEmphasis removes every asterisk so emphasis markup does not count
// toward display width.
func stripEmphasis(cell string) string {
	return strings.ReplaceAll(cell, "*", "")
}

func ljust(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// StripMarkdown converts Markdown-formatted text to clean plain text, for
// platforms whose message surface renders no markup at all (LINE, OneBot).
func StripMarkdown(s string) string {
	s = reCodeBlock.ReplaceAllString(s, "$1")
	s = reInlineCode.ReplaceAllString(s, "$1")

	s = reBold.ReplaceAllString(s, "$1")
	s = reBoldUnd.ReplaceAllString(s, "$1")
	s = reItalicAst.ReplaceAllString(s, "$1")
	s = reItalicUnd.ReplaceAllString(s, "$1")
	s = reStrike.ReplaceAllString(s, "$1")

	// Links [text](url) → text (url)
	s = reLink.ReplaceAllString(s, "$1 ($2)")

	s = reHeading.ReplaceAllString(s, "")
	s = reHorizontal.ReplaceAllString(s, "")
	s = reBlockquote.ReplaceAllString(s, "")

	// Collapse 3+ consecutive blank lines into 2
	s = regexp.MustCompile(`\n{3,}`).ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
