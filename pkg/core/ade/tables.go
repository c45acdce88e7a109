package ade

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tableBlock = regexp.MustCompile(`(?is)<table\b.*?</table>`)

// FlattenTables replaces HTML tables embedded in ADE markdown with pipe
// tables so that previews and keyword detection see plain cell text.
func FlattenTables(markdown string) string {
	if !strings.Contains(strings.ToLower(markdown), "<table") {
		return markdown
	}
	return tableBlock.ReplaceAllStringFunc(markdown, func(block string) string {
		if md := tableToMarkdown(block); md != "" {
			return md
		}
		return block
	})
}

// tableToMarkdown lays cells out on a grid so colspan and rowspan keep
// columns aligned. Spanned slots are left blank.
func tableToMarkdown(tableHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return ""
	}

	rows := doc.Find("tr")
	if rows.Length() == 0 {
		return ""
	}

	maxCols := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		n := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			n += span(cell, "colspan")
		})
		if n > maxCols {
			maxCols = n
		}
	})
	if maxCols == 0 {
		return ""
	}

	rowCount := rows.Length()
	grid := make([][]string, rowCount)
	taken := make([][]bool, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
		taken[i] = make([]bool, maxCols)
	}

	rows.Each(func(r int, tr *goquery.Selection) {
		col := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			for col < maxCols && taken[r][col] {
				col++
			}
			cs, rs := span(cell, "colspan"), span(cell, "rowspan")
			for dr := 0; dr < rs && r+dr < rowCount; dr++ {
				for dc := 0; dc < cs && col+dc < maxCols; dc++ {
					taken[r+dr][col+dc] = true
				}
			}
			if col < maxCols {
				grid[r][col] = cellText(cell.Text())
			}
			col += cs
		})
	})

	var sb strings.Builder
	sb.WriteString("\n")
	for i, row := range grid {
		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString("|")
			for range row {
				sb.WriteString(" --- |")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func span(cell *goquery.Selection, attr string) int {
	n, err := strconv.Atoi(cell.AttrOr(attr, "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cellText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return strings.ReplaceAll(text, "|", "&#124;")
}
