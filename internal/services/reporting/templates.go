package reporting

// ReportTemplate is the self-contained HTML report: styles inline,
// screenshots embedded as data URIs, no external assets.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Test Execution Report</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
    body { font-family: 'Segoe UI', Arial, sans-serif; background: #0d0f1a; color: #e2e4f0; line-height: 1.6; }
    a    { color: #5eead4; }

    /* Header */
    .report-header { background: linear-gradient(135deg,#1a1d30,#12162a); padding: 2.5rem 3rem; border-bottom: 1px solid rgba(255,255,255,0.08); }
    .report-title   { font-size: 1.8rem; font-weight: 800; margin-bottom: .25rem;
                      background: linear-gradient(90deg,#7c6fff,#5eead4); -webkit-background-clip: text; -webkit-text-fill-color: transparent; background-clip: text; }
    .report-sub     { font-size: .85rem; color: #8b90a8; }

    /* Summary cards */
    .summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(140px, 1fr)); gap: 1rem; margin: 2rem 3rem; }
    .summary-card { background: rgba(255,255,255,0.04); border: 1px solid rgba(255,255,255,0.08); border-radius: 12px; padding: 1.2rem; text-align: center; }
    .summary-card .value { font-size: 2.2rem; font-weight: 800; }
    .summary-card .label { font-size: .78rem; color: #8b90a8; text-transform: uppercase; letter-spacing: .08em; margin-top: .25rem; }
    .pass-value   { color: #22c55e; }
    .fail-value   { color: #ef4444; }
    .error-value  { color: #f59e0b; }
    .rate-value   { color: {{rateColor .Summary.PassRate}}; }

    /* Comment box */
    .comment-box { margin: 0 3rem 2rem; background: rgba(124,111,255,0.08); border: 1px solid rgba(124,111,255,0.25); border-radius: 10px; padding: 1rem 1.4rem; font-size: .9rem; color: #c4c8e8; }
    .exec-box    { margin: 0 3rem 2rem; background: rgba(94,234,212,0.06); border: 1px solid rgba(94,234,212,0.2); border-radius: 10px; padding: 1rem 1.4rem; font-size: .9rem; color: #c4e8e0; }

    /* Section headings */
    .section-heading { font-size: 1.2rem; font-weight: 700; margin: 2.5rem 3rem 1rem; padding-bottom: .5rem; border-bottom: 1px solid rgba(255,255,255,0.08); color: #a5b4fc; }

    /* Feature */
    .feature-section  { margin: 0 3rem 2rem; }
    .feature-heading  { font-size: 1rem; font-weight: 700; margin-bottom: 1rem; color: #c4b5fd; background: rgba(255,255,255,0.03); padding: .5rem .9rem; border-radius: 6px; border-left: 3px solid #7c6fff; }

    /* TC Card */
    .tc-card { border: 1px solid rgba(255,255,255,0.07); border-radius: 10px; margin-bottom: .9rem; overflow: hidden; background: rgba(255,255,255,0.02); }
    .pass-card  { border-left: 4px solid #22c55e; }
    .fail-card  { border-left: 4px solid #ef4444; }
    .error-card { border-left: 4px solid #f59e0b; }

    .tc-header { display: flex; flex-wrap: wrap; align-items: center; gap: .7rem; padding: .75rem 1rem; background: rgba(255,255,255,0.025); }
    .tc-id       { font-family: monospace; font-size: .78rem; color: #8b90a8; min-width: 60px; }
    .tc-condition{ font-size: .87rem; flex: 1; min-width: 160px; }
    .duration    { font-size: .75rem; color: #8b90a8; margin-left: auto; }

    .status-badge { font-size: .72rem; font-weight: 700; padding: .2rem .6rem; border-radius: 999px; }
    .pass  { background: rgba(34,197,94,0.15);  color: #86efac; }
    .fail  { background: rgba(239,68,68,0.15);  color: #fca5a5; }
    .error { background: rgba(245,158,11,0.15); color: #fde68a; }

    .tc-meta  { display: flex; gap: 1.5rem; flex-wrap: wrap; padding: .4rem 1rem; font-size: .75rem; color: #8b90a8; }
    .error-block { margin: .5rem 1rem; padding: .6rem .9rem; background: rgba(239,68,68,0.08); border: 1px solid rgba(239,68,68,0.2); border-radius: 6px; font-size: .82rem; color: #fca5a5; }
    .log-block { margin: .5rem 1rem 0; padding: .55rem .9rem; background: rgba(0,0,0,0.25); border-radius: 6px; font-family: 'Courier New',monospace; font-size: .72rem; color: #8b90a8; white-space: pre-wrap; max-height: 120px; overflow-y: auto; }

    /* Screenshot */
    .screenshot-block { margin: .75rem 1rem 1rem; }
    .screenshot-label { font-size: .75rem; color: #f59e0b; margin-bottom: .4rem; }
    .screenshot-block img { max-width: 100%; border-radius: 6px; border: 1px solid rgba(255,255,255,0.1); }
    .missing-shot { margin: .5rem 1rem; font-size: .78rem; color: #f59e0b; }

    /* Conclusion */
    .conclusion-box { margin: 0 3rem; background: rgba(255,255,255,0.025); border: 1px solid rgba(255,255,255,0.07); border-radius: 10px; padding: 1.5rem; }
    .conclusion-box h3 { font-size: .9rem; color: #a5b4fc; margin: 0 0 .75rem; text-transform: uppercase; letter-spacing: .07em; }
    .conclusion-box ul { padding-left: 1.3rem; }
    .conclusion-box li { font-size: .87rem; margin-bottom: .4rem; color: #c4c8e8; }

    footer { text-align: center; padding: 2rem; font-size: .75rem; color: #4b5180; margin-top: 3rem; border-top: 1px solid rgba(255,255,255,0.06); }

    @media print {
      body { background: #fff; color: #111; }
      .report-header { background: #f0f0f5; }
      .tc-card, .comment-box, .exec-box, .conclusion-box { border-color: #ccc; }
      .log-block { background: #f5f5f5; color: #333; }
    }
  </style>
</head>
<body>

<header class="report-header">
  <div class="report-title">🧪 Test Execution Report</div>
  <div class="report-sub">Generated by StoryQA · {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</div>
</header>

<!-- ── SUMMARY ── -->
<h2 class="section-heading">📊 Summary</h2>
<div class="summary-grid">
  <div class="summary-card"><div class="value">{{.Summary.Total}}</div><div class="label">Total</div></div>
  <div class="summary-card"><div class="value pass-value">{{.Summary.Passed}}</div><div class="label">Passed</div></div>
  <div class="summary-card"><div class="value fail-value">{{.Summary.Failed}}</div><div class="label">Failed</div></div>
  <div class="summary-card"><div class="value error-value">{{.Summary.Errored}}</div><div class="label">Errors</div></div>
  <div class="summary-card"><div class="value rate-value">{{.Summary.PassRate}}%</div><div class="label">Pass Rate</div></div>
</div>
<div class="comment-box">💬 {{.Comment}}</div>
{{if .Executive}}<div class="exec-box">🤖 {{.Executive}}</div>{{end}}

<!-- ── DETAILED RESULTS ── -->
<h2 class="section-heading">🔍 Detailed Results</h2>
{{range .Features}}
<section class="feature-section">
  <h2 class="feature-heading">📂 {{.Feature}}</h2>
  {{range .Cases}}
  <div class="tc-card {{statusClass .Status}}-card">
    <div class="tc-header">
      <span class="tc-id">{{.TCID}}</span>
      <span class="tc-condition">{{.Condition}}</span>
      <span class="status-badge {{statusClass .Status}}">{{.Status}}</span>
      <span class="duration">{{duration .DurationSeconds}}</span>
    </div>
    <div class="tc-meta">
      <span>👤 {{.UserRole}}</span>
      <span>🌐 <a href="{{.PageURL}}" target="_blank">{{.PageURL}}</a></span>
    </div>
    {{if .ErrorMessage}}<div class="error-block"><strong>Error:</strong> {{.ErrorMessage}}</div>{{end}}
    <div class="log-block">{{.Log}}</div>
    {{with .Screenshot}}{{if .DataURI}}<div class="screenshot-block">
      <p class="screenshot-label">📸 Failure Screenshot</p>
      <img src="{{.DataURI}}" alt="Failure screenshot" />
    </div>{{else}}<p class="missing-shot">⚠️ Screenshot referenced but file not found: {{.MissingPath}}</p>{{end}}{{end}}
  </div>
  {{end}}
</section>
{{end}}

<!-- ── CONCLUSION ── -->
<h2 class="section-heading">📝 Conclusion &amp; Recommendations</h2>
<div class="conclusion-box">
  <h3>🔴 Failure Patterns</h3>
  <ul>{{range .Patterns}}<li>{{.}}</li>{{end}}</ul>
  <h3 style="margin-top:1.2rem">✅ Recommended Next Steps</h3>
  <ul>{{range .NextSteps}}<li>{{.}}</li>{{end}}</ul>
</div>

<footer>StoryQA · Automated Test Report · {{.GeneratedAt.Format "2006-01-02 15:04:05"}} · For internal use only</footer>
</body>
</html>
`
