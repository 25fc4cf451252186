package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"

	"k8s.io/klog/v2"

	"github.com/gkobilansky/gamma-goat/internal/check"
	"github.com/gkobilansky/gamma-goat/internal/store"
)

const layoutTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · gamma-goat</title>
<style>{{.CSS}}</style>
</head>
<body>
<header><a href="/report">gamma-goat</a> <a class="logout" href="/report?logout=1">log out</a></header>
<main>{{.Content}}</main>
</body>
</html>`

const reportCSS = `
body { font-family: system-ui, sans-serif; margin: 0; color: #222; }
header { background: #2d3a4a; padding: 0.75rem 1.5rem; }
header a { color: #fff; text-decoration: none; font-weight: 600; }
header .logout { float: right; font-weight: normal; }
main { padding: 1.5rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.35rem 0.75rem; border-bottom: 1px solid #ddd; font-variant-numeric: tabular-nums; }
.fail { color: #b00020; }
.muted { color: #777; }
`

const listTemplate = `<h1>Check runs</h1>
<p class="muted">{{.Cases}} reference cases stored.</p>
{{if .Runs}}
<table>
<tr><th>Run</th><th>Method</th><th>Oracle</th><th>Cases</th><th>Failures</th><th>Mean</th><th>p50</th><th>p99</th><th>Max</th><th>Created</th></tr>
{{range .Runs}}
<tr>
<td><a href="/report/run/{{.ID}}">{{.ShortID}}</a></td>
<td>{{.Method}}</td><td>{{.Oracle}}</td><td>{{.Cases}}</td>
<td{{if .Failures}} class="fail"{{end}}>{{.Failures}}</td>
<td>{{.MeanErr}}</td><td>{{.P50Err}}</td><td>{{.P99Err}}</td><td>{{.MaxErr}}</td>
<td>{{.CreatedAt}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No runs yet. Run <code>gamma-goat check</code> to create one.</p>
{{end}}`

const runTemplate = `<h1>Run {{.Run.ShortID}}</h1>
<p>{{.Run.Method}} against {{.Run.Oracle}}: {{.Run.Cases}} cases, {{.Run.Failures}} failures, max relative error {{.Run.MaxErr}}.</p>
<table>
<tr><th>a</th><th>x</th><th>P</th><th>want P</th><th>Q</th><th>want Q</th><th>Rel. error</th><th>Branch</th></tr>
{{range .Results}}
<tr{{if .Failed}} class="fail"{{end}}>
<td>{{.A}}</td><td>{{.X}}</td><td>{{.P}}</td><td>{{.WantP}}</td><td>{{.Q}}</td><td>{{.WantQ}}</td><td>{{.RelErr}}</td><td>{{.Branch}}</td>
</tr>
{{end}}
</table>`

var (
	layoutTmpl = template.Must(template.New("layout").Parse(layoutTemplate))
	listTmpl   = template.Must(template.New("list").Parse(listTemplate))
	runTmpl    = template.Must(template.New("run").Parse(runTemplate))
)

type layoutData struct {
	Title   string
	CSS     template.CSS
	Content template.HTML
}

type runItem struct {
	ID        string
	ShortID   string
	Method    string
	Oracle    string
	Cases     int
	Failures  int
	MeanErr   string
	P50Err    string
	P99Err    string
	MaxErr    string
	CreatedAt string
}

type listData struct {
	Cases int
	Runs  []runItem
}

type resultItem struct {
	A, X, P, Q, WantP, WantQ string
	RelErr                   string
	Branch                   string
	Failed                   bool
}

type runData struct {
	Run     runItem
	Results []resultItem
}

func newRunItem(r *store.CheckRun) runItem {
	short := r.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return runItem{
		ID:        r.ID,
		ShortID:   short,
		Method:    r.Method,
		Oracle:    r.Oracle,
		Cases:     r.Cases,
		Failures:  r.Failures,
		MeanErr:   formatErr(r.MeanErr),
		P50Err:    formatErr(r.P50Err),
		P99Err:    formatErr(r.P99Err),
		MaxErr:    formatErr(r.MaxErr),
		CreatedAt: r.CreatedAt.Format("Jan 2, 2006 15:04"),
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	// Handle logout
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/report", http.StatusFound)
		return
	}

	ctx := r.Context()

	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}
	cases, err := s.store.CountCases(ctx)
	if err != nil {
		http.Error(w, "Failed to count cases", http.StatusInternalServerError)
		return
	}

	items := make([]runItem, len(runs))
	for i, run := range runs {
		items[i] = newRunItem(run)
	}

	s.renderReport(w, "Check runs", listTmpl, listData{Cases: cases, Runs: items})
}

func (s *Server) handleReportRun(w http.ResponseWriter, r *http.Request) {
	// Extract run id from path: /report/run/<id>
	id := r.URL.Path[len("/report/run/"):]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()

	run, err := s.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	results, err := s.store.GetResults(ctx, id)
	if err != nil {
		http.Error(w, "Failed to load results", http.StatusInternalServerError)
		return
	}

	// Worst first
	sort.SliceStable(results, func(i, j int) bool { return results[i].RelErr > results[j].RelErr })

	items := make([]resultItem, len(results))
	for i, res := range results {
		items[i] = resultItem{
			A:      formatValue(res.A),
			X:      formatValue(res.X),
			P:      formatValue(res.P),
			Q:      formatValue(res.Q),
			WantP:  formatValue(res.WantP),
			WantQ:  formatValue(res.WantQ),
			RelErr: formatErr(res.RelErr),
			Branch: res.Branch,
			Failed: res.RelErr > check.Tolerance,
		}
	}

	data := runData{Run: newRunItem(run), Results: items}
	s.renderReport(w, "Run "+data.Run.ShortID, runTmpl, data)
}

func (s *Server) renderReport(w http.ResponseWriter, title string, content *template.Template, data interface{}) {
	var contentBuf bytes.Buffer
	if err := content.Execute(&contentBuf, data); err != nil {
		klog.Errorf("failed to render %s: %v", content.Name(), err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	err := layoutTmpl.Execute(&page, layoutData{
		Title:   title,
		CSS:     template.CSS(reportCSS),
		Content: template.HTML(contentBuf.String()),
	})
	if err != nil {
		klog.Errorf("failed to render layout: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page.WriteTo(w)
}

func formatErr(e float64) string {
	if e == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2e", e)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.17g", v)
}
