package callback

import (
	_ "embed"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/waabox/ghlconnect/internal/domain"
)

//go:embed page.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

type paramRow struct {
	Key   string
	Value string
}

type pageData struct {
	Title      string
	Heading    string
	Status     domain.ViewStatus
	Refresh    bool
	Outcome    Outcome
	ShowParams bool
	ParamRows  []paramRow
}

// RenderPage writes the HTML page for o.
// Parameters are listed only in display-only mode, where they are the whole content.
func RenderPage(w io.Writer, o Outcome, displayOnly bool) error {
	data := pageData{
		Title:      "OAuth Callback",
		Status:     o.Status,
		Outcome:    o,
		ShowParams: displayOnly && len(o.Params) > 0,
	}
	switch o.Status {
	case domain.StatusLoading:
		data.Heading = "Processing..."
		data.Refresh = true
	case domain.StatusSuccess:
		data.Heading = "Success!"
	default:
		data.Heading = "Error"
	}
	if data.ShowParams {
		data.ParamRows = sortedRows(o.Params)
	}
	return pageTemplate.Execute(w, data)
}

func sortedRows(params map[string][]string) []paramRow {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]paramRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, paramRow{Key: k, Value: strings.Join(params[k], ", ")})
	}
	return rows
}
