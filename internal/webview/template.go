package webview

import (
	"html/template"

	"github.com/gordyrad/green-refactor/internal/panel"
)

type reportView struct {
	Open      bool
	Version   int
	Render    string
	File      string
	Range     string
	Language  string
	ScoreLine string
	Improved  bool
	Before    string
	After     string
	Summary   string
	Why       string
	Gain      string
	Code      string
}

func newReportView(r panel.Rendering, open bool, version int) reportView {
	if !open {
		return reportView{Version: version}
	}
	return reportView{
		Open:      true,
		Version:   version,
		Render:    r.ID,
		File:      r.Selection.DisplayName(),
		Range:     r.Selection.Range.String(),
		Language:  r.Selection.Language,
		ScoreLine: panel.ScoreLine(r),
		Improved:  r.Result.Improved(),
		Before:    r.Result.ComplexityBefore,
		After:     r.Result.ComplexityAfter,
		Summary:   r.Result.Summary,
		Why:       r.Result.Explanation,
		Gain:      r.Result.EstimatedGain,
		Code:      r.Result.OptimizedCode,
	}
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Green Refactor · Eco Audit</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; max-width: 60rem; }
h1 { color: #2e7d32; }
.meta { color: #777; }
.score { font-size: 1.6rem; font-weight: bold; }
.good { color: #2e7d32; }
.warn { color: #ef6c00; }
dt { font-weight: bold; margin-top: .6rem; }
pre { background: #f4f4f4; padding: 1rem; border-radius: 6px; overflow-x: auto; }
button { margin-right: .5rem; padding: .4rem 1rem; }
#status { margin-top: 1rem; }
</style>
</head>
<body>
{{if .Open}}
<h1>🌱 Green Refactor · Eco Audit</h1>
<p class="meta">{{.File}} {{.Range}} ({{.Language}})</p>
<p class="score {{if .Improved}}good{{else}}warn{{end}}">Eco score {{.ScoreLine}}</p>
<dl>
<dt>Complexity</dt><dd>{{.Before}} → {{.After}}</dd>
<dt>Estimated gain</dt><dd>{{.Gain}}</dd>
<dt>Summary</dt><dd>{{.Summary}}</dd>
<dt>Why</dt><dd>{{.Why}}</dd>
</dl>
<h2>Optimized code</h2>
<pre><code>{{.Code}}</code></pre>
<button onclick="send('showDiff')">Show diff</button>
<button onclick="send('applyFix')">Apply optimized code</button>
<button onclick="closePanel()">Close</button>
<div id="status"></div>
<script>
const render = {{.Render}};
const code = {{.Code}};
const version = {{.Version}};
async function send(command) {
  const res = await fetch("/message", {method: "POST", body: JSON.stringify({command: command, code: code, render: render})});
  document.getElementById("status").textContent = res.ok ? "" : await res.text();
  if (res.ok) { location.reload(); }
}
async function closePanel() {
  await fetch("/close", {method: "POST"});
  location.reload();
}
setInterval(async () => {
  const res = await fetch("/state");
  if (res.ok && (await res.json()).version !== version) { location.reload(); }
}, 2000);
</script>
{{else}}
<h1>Green Refactor</h1>
<p class="meta">No report is open.</p>
{{end}}
</body>
</html>
`))
