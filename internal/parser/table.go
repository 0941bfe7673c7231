// Package parser turns rendered ranking-page markup into normalized rows,
// applicant records, and the scalar facts printed alongside them.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/admissions-rank/internal/admission"
)

// Table is the first table found in a document, with normalized headers.
type Table struct {
	Columns []string
	Rows    []admission.RawRow
}

// ExtractTable parses markup and returns its first table. Row order follows
// the document.
func ExtractTable(markup string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Table{}, fmt.Errorf("parse markup: %w", err)
	}
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return Table{}, admission.ErrNoTable
	}
	return parseTable(tables.First()), nil
}

func parseTable(table *goquery.Selection) Table {
	headRows := table.ChildrenFiltered("thead").ChildrenFiltered("tr")
	bodyRows := table.ChildrenFiltered("tbody, tfoot").ChildrenFiltered("tr")

	var header *goquery.Selection
	switch {
	case headRows.Length() > 0:
		header = headRows.First()
	case bodyRows.Length() > 0 && isHeaderRow(bodyRows.First()):
		header = bodyRows.First()
		bodyRows = bodyRows.Slice(1, goquery.ToEnd)
	}

	var columns []string
	if header != nil {
		columns = uniqueColumns(cellTexts(header))
	}

	rows := make([]admission.RawRow, 0, bodyRows.Length())
	bodyRows.Each(func(_ int, tr *goquery.Selection) {
		if tr.ChildrenFiltered("td").Length() == 0 {
			return
		}
		cells := cellTexts(tr)
		if columns == nil {
			columns = positionalColumns(len(cells))
		}
		row := admission.RawRow{
			Columns: columns,
			Cells:   make(map[string]string, len(columns)),
		}
		for i, col := range columns {
			if i < len(cells) {
				row.Cells[col] = cells[i]
			} else {
				row.Cells[col] = ""
			}
		}
		rows = append(rows, row)
	})
	return Table{Columns: columns, Rows: rows}
}

func isHeaderRow(tr *goquery.Selection) bool {
	return tr.ChildrenFiltered("th").Length() > 0 && tr.ChildrenFiltered("td").Length() == 0
}

func cellTexts(tr *goquery.Selection) []string {
	cells := tr.ChildrenFiltered("th, td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, collapseSpace(cell.Text()))
	})
	return out
}

// NormalizeColumn trims, lowercases, and joins internal whitespace with "_".
func NormalizeColumn(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), "_")
}

func uniqueColumns(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, r := range raw {
		col := NormalizeColumn(r)
		if col == "" {
			col = strconv.Itoa(i)
		}
		if n, dup := seen[col]; dup {
			seen[col] = n + 1
			col = fmt.Sprintf("%s.%d", col, n+1)
		} else {
			seen[col] = 0
		}
		out[i] = col
	}
	return out
}

func positionalColumns(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
