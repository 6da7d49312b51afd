package health

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// RenderDashboardHTML returns the HTML status page for GET /. The page
// polls /health/json a few times and then stops.
func RenderDashboardHTML(health CollectResult) string {
	b, _ := json.Marshal(health)
	jsonStr := string(b)
	// Escape for embedding in a JS template literal: \ ` $
	jsonStr = strings.ReplaceAll(jsonStr, "\\", "\\\\")
	jsonStr = strings.ReplaceAll(jsonStr, "`", "\\`")
	jsonStr = strings.ReplaceAll(jsonStr, "$", "\\$")

	headline := "All Systems Operational"
	if health.Status != "ok" {
		headline = "System Issues Detected"
	}
	lastReqMethod, lastReqPath := "-", "-"
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		if v, ok := m["method"].(string); ok {
			lastReqMethod = v
		}
		if v, ok := m["path"].(string); ok {
			lastReqPath = v
		}
	}
	ledger := LedgerInfo{}
	if health.Ledger != nil {
		ledger = *health.Ledger
	}
	dep := func(name string) string {
		d := health.Dependencies[name]
		class := "err"
		if d.Status == "connected" {
			class = "ok"
		}
		ping := "?"
		if p, ok := d.PingMs.(*int64); ok && p != nil {
			ping = fmt.Sprint(*p)
		}
		return `<span id="pill-` + name + `" class="pill ` + class + `">` + html.EscapeString(d.Status) + ` · <span id="ping-` + name + `">` + ping + `</span> ms</span>`
	}

	return `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Commission Engine · API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --ink: #1f2937; --ok: #047857; --bad: #b91c1c; --muted: #6b7280; --bg: #f9fafb; }
    body { background: var(--bg); color: var(--ink); font-family: system-ui, sans-serif; margin: 0; padding: 40px 20px; }
    .container { max-width: 1000px; margin: 0 auto; }
    h1 { font-size: 40px; font-weight: 900; letter-spacing: -1px; margin: 0 0 8px; }
    .subtext { color: var(--muted); font-weight: 600; margin-bottom: 28px; }
    .grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 16px; }
    .card { background: white; border-radius: 16px; padding: 28px; box-shadow: 0 10px 40px -20px rgba(0,0,0,0.2); }
    .label { text-transform: uppercase; font-size: 11px; font-weight: 900; letter-spacing: 2px; color: var(--muted); margin-bottom: 16px; }
    .big { font-size: 34px; font-weight: 900; margin-bottom: 10px; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid #f3f4f6; font-size: 14px; font-weight: 700; }
    .row:last-child { border-bottom: none; }
    .pill { padding: 4px 10px; border-radius: 8px; font-size: 11px; font-weight: 900; }
    .ok { background: rgba(4,120,87,0.08); color: var(--ok); }
    .err { background: rgba(185,28,28,0.08); color: var(--bad); }
    .footer { margin-top: 16px; font-family: monospace; font-size: 13px; color: var(--muted); display: flex; justify-content: space-between; }
    a { color: var(--ink); font-weight: 800; }
    @media (max-width: 800px) { .grid { grid-template-columns: 1fr; } }
  </style>
</head>
<body>
  <div class="container">
    <h1 id="headline">` + headline + `</h1>
    <p class="subtext">Commission engine API · <a href="/health/json">/health/json</a> · <a href="/health/errors">/health/errors</a> · <a href="/metrics">/metrics</a></p>
    <div class="grid">
      <div class="card">
        <div class="label">Traffic</div>
        <div class="big" id="total-req">` + fmt.Sprint(health.Traffic.TotalRequests) + `</div>
        <div class="row"><span>Successful</span><span id="success-count">` + fmt.Sprint(health.Traffic.SuccessCount) + `</span></div>
        <div class="row"><span>Failed</span><span id="failed-count">` + fmt.Sprint(health.Traffic.FailedCount) + `</span></div>
        <div class="row"><span>Success Rate</span><span id="success-rate">` + health.Traffic.SuccessRate + `%</span></div>
        <div class="row"><span>Avg Latency</span><span id="avg-time">` + fmt.Sprint(health.Traffic.AvgResponseTime) + `ms</span></div>
      </div>
      <div class="card">
        <div class="label">Ledger</div>
        <div class="big" id="deals">` + fmt.Sprint(ledger.Deals) + ` deals</div>
        <div class="row"><span>Payments</span><span id="payments">` + fmt.Sprint(ledger.Payments) + `</span></div>
        <div class="row"><span>Brokers on deals</span><span id="commission-splits">` + fmt.Sprint(ledger.CommissionSplits) + `</span></div>
        <div class="row"><span>Payment splits</span><span id="payment-splits">` + fmt.Sprint(ledger.PaymentSplits) + `</span></div>
        <div class="row"><span>Unpaid splits</span><span id="unpaid-splits">` + fmt.Sprint(ledger.UnpaidSplits) + `</span></div>
      </div>
      <div class="card">
        <div class="label">Runtime & Connectivity</div>
        <div class="big" id="uptime">` + fmt.Sprint(health.Runtime.UptimeSeconds) + `s</div>
        <div class="row"><span>Heap Used</span><span id="mem-heap">` + fmt.Sprint(health.Runtime.Memory.HeapUsed) + ` MB</span></div>
        <div class="row"><span>Goroutines</span><span id="goroutines">` + fmt.Sprint(health.Runtime.Goroutines) + `</span></div>
        <div class="row"><span>Database</span>` + dep("database") + `</div>
        <div class="row"><span>Redis</span>` + dep("redis") + `</div>
      </div>
    </div>
    <div class="footer">
      <span>LAST INBOUND <b id="req-method">` + html.EscapeString(lastReqMethod) + `</b> <span id="req-path">` + html.EscapeString(lastReqPath) + `</span></span>
      <span>` + html.EscapeString(health.Runtime.Platform) + ` · ` + html.EscapeString(health.Runtime.GoVersion) + `</span>
    </div>
  </div>
  <script>
    let left = 3;
    const set = (id, v) => { const el = document.getElementById(id); if (el) el.innerText = v; };
    const updateUI = (d) => {
      set('headline', d.status === 'ok' ? 'All Systems Operational' : 'System Issues Detected');
      set('total-req', d.traffic.totalRequests);
      set('success-count', d.traffic.successCount);
      set('failed-count', d.traffic.failedCount);
      set('success-rate', d.traffic.successRate + '%');
      set('avg-time', d.traffic.avgResponseTime + 'ms');
      set('uptime', d.runtime.uptimeSeconds + 's');
      set('mem-heap', d.runtime.memory.heapUsed + ' MB');
      set('goroutines', d.runtime.goroutines);
      if (d.ledger) { set('deals', d.ledger.deals + ' deals'); set('payments', d.ledger.payments); set('commission-splits', d.ledger.commissionSplits); set('payment-splits', d.ledger.paymentSplits); set('unpaid-splits', d.ledger.unpaidSplits); }
      for (const name of ['database', 'redis']) {
        const dep = d.dependencies[name]; const pill = document.getElementById('pill-' + name);
        if (!dep || !pill) continue;
        pill.className = 'pill ' + (dep.status === 'connected' ? 'ok' : 'err');
        pill.innerHTML = dep.status + ' · <span id="ping-' + name + '">' + (dep.pingMs != null ? dep.pingMs : '?') + '</span> ms';
      }
      if (d.traffic.lastRequest) { set('req-method', d.traffic.lastRequest.method); set('req-path', d.traffic.lastRequest.path); }
    };
    async function tick() { if (left <= 0) return; left--; try { const r = await fetch('/health/json'); updateUI(await r.json()); } catch (e) {} }
    updateUI(JSON.parse(` + "`" + jsonStr + "`" + `));
    setInterval(tick, 10000);
  </script>
</body>
</html>`
}
