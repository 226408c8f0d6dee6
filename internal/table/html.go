package table

import (
	"encoding/json"
	"html"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EmptyHTML is rendered when there are no records.
const EmptyHTML = "<p>No data to display</p>"

const (
	headerCellClass = "px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase tracking-wider"
	bodyCellClass   = "px-6 py-4 whitespace-nowrap text-sm text-gray-900"
)

var printer = message.NewPrinter(language.English)

// ToHTML renders records as a table. Columns come from the first record; later
// records missing a column get an empty cell.
func ToHTML(records []Record) string {
	if len(records) == 0 {
		return EmptyHTML
	}

	columns := records[0].Keys()

	var b strings.Builder
	b.WriteString("<table class=\"min-w-full divide-y divide-gray-200\">\n")
	b.WriteString("<thead class=\"bg-gray-50\">\n<tr>\n")
	for _, col := range columns {
		b.WriteString("<th class=\"" + headerCellClass + "\">")
		b.WriteString(html.EscapeString(col))
		b.WriteString("</th>\n")
	}
	b.WriteString("</tr>\n</thead>\n")
	b.WriteString("<tbody class=\"bg-white divide-y divide-gray-200\">\n")
	for _, rec := range records {
		b.WriteString("<tr>\n")
		for _, col := range columns {
			cell := ""
			if v, ok := rec.Get(col); ok {
				cell = FormatCell(v)
			}
			b.WriteString("<td class=\"" + bodyCellClass + "\">")
			b.WriteString(html.EscapeString(cell))
			b.WriteString("</td>\n")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>")
	return b.String()
}

// FormatCell renders one value the way the result table shows it.
func FormatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return printer.Sprintf("%d", t)
	case int64:
		return printer.Sprintf("%d", t)
	case float64:
		return formatFloat(t)
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return printer.Sprintf("%v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return printer.Sprintf("%d", int64(f))
	}
	return printer.Sprintf("%.2f", f)
}
