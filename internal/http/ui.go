package http

import nethttp "net/http"

func dashboardHandler(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.URL.Path != "/" {
		nethttp.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write([]byte(dashboardHTML))
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Fraud Score Dashboard</title>
  <style>
    @import url("https://fonts.googleapis.com/css?family=Open+Sans:300,400,600,700");

    :root {
      --brand: #0e5d8f;
      --brand-2: #0971b2;
      --bg: #f7f7f7;
      --paper: #fff;
      --text: #333;
      --muted: #777;
      --line: #ddd;
      --line-soft: #eee;
      --head: #f0f0f0;
      --ok-bg: #dff0d8;
      --ok-text: #3c763d;
      --warn-bg: #fcf8e3;
      --warn-text: #8a6d3b;
      --bad-bg: #f2dede;
      --bad-text: #a94442;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      background: var(--bg);
      color: var(--text);
      font-family: "Open Sans", "Helvetica Neue", Helvetica, Arial, sans-serif;
      font-size: 14px;
      line-height: 1.42857143;
    }

    a { color: #428bca; text-decoration: none; }
    a:hover { color: #2a6496; text-decoration: underline; }

    header {
      background: var(--brand);
      color: #fff;
      padding: 12px 24px;
      display: flex;
      align-items: center;
      justify-content: space-between;
    }
    header h1 { margin: 0; font-size: 18px; font-weight: 600; }
    header .who { font-size: 13px; }

    main { max-width: 1100px; margin: 0 auto; padding: 18px 24px 48px; }

    .panel {
      background: var(--paper);
      border: 1px solid var(--line);
      border-radius: 4px;
      margin-bottom: 18px;
    }
    .panel > h2 {
      margin: 0;
      padding: 10px 14px;
      background: var(--head);
      border-bottom: 1px solid var(--line);
      font-size: 14px;
      font-weight: 600;
    }
    .panel .body { padding: 14px; }

    label { display: block; font-size: 12px; color: var(--muted); margin-bottom: 2px; }
    input, textarea, select {
      width: 100%; padding: 6px 8px; border: 1px solid var(--line);
      border-radius: 3px; font: inherit; margin-bottom: 10px;
    }
    textarea { font-family: Menlo, Consolas, monospace; font-size: 12px; min-height: 140px; }

    .row { display: flex; gap: 12px; flex-wrap: wrap; }
    .row > div { flex: 1 1 200px; }

    button {
      background: var(--brand-2); color: #fff; border: 0; border-radius: 3px;
      padding: 7px 14px; font: inherit; cursor: pointer; margin-right: 6px;
    }
    button.secondary { background: #888; }
    button:disabled { opacity: .5; cursor: default; }

    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid var(--line-soft); padding: 6px 8px; text-align: left; font-size: 13px; }
    th { background: var(--head); }

    .tag {
      display: inline-block; padding: 2px 10px; border-radius: 3px;
      font-size: 12px; font-weight: 600;
    }
    .tag.green { background: var(--ok-bg); color: var(--ok-text); }
    .tag.gold { background: var(--warn-bg); color: var(--warn-text); }
    .tag.red { background: var(--bad-bg); color: var(--bad-text); }
    .tag.info { background: #d9edf7; color: #31708f; }
    .tag.default { background: var(--line-soft); color: var(--muted); }

    .score-big { font-size: 32px; font-weight: 700; color: var(--brand); }
    .muted { color: var(--muted); font-size: 12px; }
    .error-box {
      background: var(--bad-bg); color: var(--bad-text);
      border: 1px solid #ebccd1; border-radius: 3px;
      padding: 8px 12px; margin-bottom: 12px; display: none;
    }
    .hidden { display: none; }
  </style>
</head>
<body>
  <header>
    <h1>Fraud Score Dashboard</h1>
    <div class="who">
      <span id="who-name"></span>
      <button id="btn-logout" class="secondary hidden">Sign out</button>
    </div>
  </header>

  <main>
    <div id="error" class="error-box"></div>

    <section id="panel-login" class="panel">
      <h2>Sign in</h2>
      <div class="body">
        <div class="row">
          <div>
            <label for="login-username">Username</label>
            <input id="login-username" autocomplete="username" />
          </div>
          <div>
            <label for="login-password">Password</label>
            <input id="login-password" type="password" autocomplete="current-password" />
          </div>
        </div>
        <button id="btn-login">Sign in</button>
        <button id="btn-register" class="secondary">Register</button>
      </div>
    </section>

    <section id="panel-score" class="panel hidden">
      <h2>Score a transaction</h2>
      <div class="body">
        <label for="txn-json">Transaction JSON</label>
        <textarea id="txn-json" spellcheck="false"></textarea>
        <button id="btn-score">Score</button>
        <button id="btn-sample" class="secondary">Fill sample</button>
        <button id="btn-reset" class="secondary">Reset</button>

        <div id="result" class="hidden" style="margin-top:14px">
          <div class="row">
            <div>
              <div class="muted">Score</div>
              <div class="score-big" id="result-score">-</div>
            </div>
            <div>
              <div class="muted">Decision</div>
              <div><span id="result-decision" class="tag default">-</span></div>
            </div>
            <div>
              <div class="muted">Model</div>
              <div id="result-model" class="muted">-</div>
            </div>
          </div>
          <h3 style="font-size:13px">Top reasons</h3>
          <table>
            <thead><tr><th>Feature</th><th>Detail</th><th>Impact</th></tr></thead>
            <tbody id="result-reasons"></tbody>
          </table>
        </div>
      </div>
    </section>

    <section id="panel-batch" class="panel hidden">
      <h2>Batch scoring</h2>
      <div class="body">
        <label for="batch-json">Transactions (JSON array)</label>
        <textarea id="batch-json" spellcheck="false"></textarea>
        <label for="csv-file" style="margin-top:6px">Or upload a CSV file</label>
        <input id="csv-file" type="file" accept=".csv" />
        <div class="row">
          <div>
            <label for="opt-top-k">Top reasons per row</label>
            <input id="opt-top-k" type="number" min="1" value="3" />
          </div>
          <div>
            <label for="opt-include-allow">Include allowed rows</label>
            <select id="opt-include-allow">
              <option value="true" selected>Yes</option>
              <option value="false">No</option>
            </select>
          </div>
        </div>
        <button id="btn-batch">Score batch</button>
        <button id="btn-upload" class="secondary">Score CSV</button>
        <button id="btn-export-xlsx" class="secondary" disabled>Export XLSX</button>
        <button id="btn-export-csv" class="secondary" disabled>Export CSV</button>

        <div id="batch-result" class="hidden" style="margin-top:14px">
          <div class="muted" id="batch-meta"></div>
          <table style="margin-top:6px">
            <thead><tr><th>Transaction</th><th>Score</th><th>Decision</th><th>Reasons</th></tr></thead>
            <tbody id="batch-rows"></tbody>
          </table>
        </div>
      </div>
    </section>

    <section id="panel-history" class="panel hidden">
      <h2>Recent submissions</h2>
      <div class="body">
        <table>
          <thead><tr><th>When</th><th>Transaction</th><th>Score</th><th>Decision</th></tr></thead>
          <tbody id="history-rows"></tbody>
        </table>
      </div>
    </section>

    <section class="panel">
      <h2>Backend status</h2>
      <div class="body">
        <div id="status-box" class="muted">Not checked yet.</div>
        <div style="margin-top:8px">
          <button id="btn-status" class="secondary">Check now</button>
          <button id="btn-reload" class="secondary">Reload model</button>
        </div>
      </div>
    </section>
  </main>

  <script>
    "use strict";

    let lastBatch = null;

    function showError(message) {
      const box = document.getElementById("error");
      if (!message) { box.style.display = "none"; return; }
      box.textContent = message;
      box.style.display = "block";
    }

    async function api(path, options) {
      const resp = await fetch(path, Object.assign({ credentials: "same-origin" }, options));
      let payload = null;
      try { payload = await resp.json(); } catch (e) { /* non-JSON */ }
      if (!resp.ok) {
        throw new Error((payload && payload.error) || ("request failed (" + resp.status + ")"));
      }
      return payload;
    }

    function setAuthenticated(session) {
      const authed = !!session;
      document.getElementById("panel-login").classList.toggle("hidden", authed);
      document.getElementById("panel-score").classList.toggle("hidden", !authed);
      document.getElementById("panel-batch").classList.toggle("hidden", !authed);
      document.getElementById("panel-history").classList.toggle("hidden", !authed);
      document.getElementById("btn-logout").classList.toggle("hidden", !authed);
      document.getElementById("who-name").textContent = authed ? (session.username || "") : "";
      if (authed) { refreshHistory(); }
    }

    function decisionTag(meta) {
      const span = document.createElement("span");
      span.className = "tag " + ((meta && meta.color) || "default");
      span.textContent = (meta && meta.label) || "Unknown";
      return span;
    }

    function renderResult(payload) {
      const meta = payload.meta || {};
      const data = payload.data || {};
      document.getElementById("result").classList.remove("hidden");
      document.getElementById("result-score").textContent =
        meta.formatted_score != null ? meta.formatted_score : "N/A";
      const decisionCell = document.getElementById("result-decision");
      decisionCell.className = "tag " + ((meta.decision_meta && meta.decision_meta.color) || "default");
      decisionCell.textContent = (meta.decision_meta && meta.decision_meta.label) || "Unknown";
      document.getElementById("result-model").textContent =
        data.model_version || data.registry_version || "-";

      const rows = document.getElementById("result-reasons");
      rows.textContent = "";
      (data.reasons || []).forEach(function (reason) {
        const tr = document.createElement("tr");
        [reason.title, reason.description, reason.impact != null ? reason.impact.toFixed(4) : ""].forEach(function (v) {
          const td = document.createElement("td");
          td.textContent = v || "";
          tr.appendChild(td);
        });
        rows.appendChild(tr);
      });
    }

    function renderBatch(payload) {
      lastBatch = payload.data;
      document.getElementById("btn-export-xlsx").disabled = false;
      document.getElementById("btn-export-csv").disabled = false;
      document.getElementById("batch-result").classList.remove("hidden");
      document.getElementById("batch-meta").textContent =
        "Rows scored: " + ((payload.meta && payload.meta.count) || 0);

      const rows = document.getElementById("batch-rows");
      rows.textContent = "";
      ((payload.data && payload.data.results) || []).forEach(function (row) {
        const tr = document.createElement("tr");

        const seq = document.createElement("td");
        seq.textContent = row.transaction_seq != null ? String(row.transaction_seq) : "";
        tr.appendChild(seq);

        const score = document.createElement("td");
        score.textContent = row.score != null ? row.score.toFixed(4) : "N/A";
        tr.appendChild(score);

        const decision = document.createElement("td");
        decision.appendChild(decisionTagForLabel(row.decision));
        tr.appendChild(decision);

        const reasons = document.createElement("td");
        reasons.textContent = (row.reasons || []).map(function (reason) { return reason.title; }).join(", ");
        tr.appendChild(reasons);

        rows.appendChild(tr);
      });
    }

    function decisionTagForLabel(decision) {
      const lowered = (decision || "").trim().toLowerCase();
      const map = {
        allow: { label: "Allow", color: "green" },
        approved: { label: "Allow", color: "green" },
        review: { label: "Manual review", color: "gold" },
        manual_review: { label: "Manual review", color: "gold" },
        deny: { label: "Deny", color: "red" },
        reject: { label: "Deny", color: "red" },
        block: { label: "Deny", color: "red" }
      };
      if (map[lowered]) { return decisionTag(map[lowered]); }
      if (!lowered) { return decisionTag({ label: "Unknown", color: "default" }); }
      return decisionTag({ label: decision, color: "info" });
    }

    async function refreshHistory() {
      try {
        const payload = await api("/api/v1/history");
        const rows = document.getElementById("history-rows");
        rows.textContent = "";
        (payload.data || []).forEach(function (entry) {
          const tr = document.createElement("tr");

          const when = document.createElement("td");
          when.textContent = new Date(entry.created_at).toLocaleString();
          tr.appendChild(when);

          const seq = document.createElement("td");
          seq.textContent = entry.payload && entry.payload.transaction_seq != null
            ? String(entry.payload.transaction_seq) : "";
          tr.appendChild(seq);

          const score = document.createElement("td");
          score.textContent = entry.formatted_score != null ? entry.formatted_score : "N/A";
          tr.appendChild(score);

          const decision = document.createElement("td");
          decision.appendChild(decisionTag(entry.decision_meta));
          tr.appendChild(decision);

          rows.appendChild(tr);
        });
      } catch (err) { /* history is best-effort */ }
    }

    document.getElementById("btn-login").addEventListener("click", async function () {
      showError(null);
      try {
        const payload = await api("/api/v1/auth/login", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify({
            username: document.getElementById("login-username").value,
            password: document.getElementById("login-password").value
          })
        });
        setAuthenticated(payload.data);
      } catch (err) { showError(err.message); }
    });

    document.getElementById("btn-register").addEventListener("click", async function () {
      showError(null);
      try {
        await api("/api/v1/auth/register", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify({
            username: document.getElementById("login-username").value,
            password: document.getElementById("login-password").value
          })
        });
        showError("Account created. You can sign in now.");
      } catch (err) { showError(err.message); }
    });

    document.getElementById("btn-logout").addEventListener("click", async function () {
      try { await api("/api/v1/auth/logout", { method: "POST" }); } catch (err) { /* ignore */ }
      setAuthenticated(null);
    });

    document.getElementById("btn-sample").addEventListener("click", async function () {
      try {
        const payload = await api("/api/v1/score/sample");
        document.getElementById("txn-json").value = JSON.stringify(payload.data, null, 2);
      } catch (err) { showError(err.message); }
    });

    document.getElementById("btn-reset").addEventListener("click", function () {
      document.getElementById("txn-json").value = "";
      document.getElementById("result").classList.add("hidden");
      showError(null);
    });

    document.getElementById("btn-score").addEventListener("click", async function () {
      showError(null);
      let body;
      try { body = JSON.parse(document.getElementById("txn-json").value); }
      catch (err) { showError("Transaction JSON does not parse."); return; }
      try {
        const payload = await api("/api/v1/score", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify(body)
        });
        renderResult(payload);
        refreshHistory();
      } catch (err) { showError(err.message); }
    });

    document.getElementById("btn-batch").addEventListener("click", async function () {
      showError(null);
      let body;
      try { body = JSON.parse(document.getElementById("batch-json").value); }
      catch (err) { showError("Batch JSON does not parse."); return; }
      try {
        const payload = await api("/api/v1/score/batch", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify(body)
        });
        renderBatch(payload);
      } catch (err) { showError(err.message); }
    });

    document.getElementById("btn-upload").addEventListener("click", async function () {
      showError(null);
      const input = document.getElementById("csv-file");
      if (!input.files || !input.files.length) { showError("Choose a CSV file first."); return; }
      const form = new FormData();
      form.append("file", input.files[0]);
      form.append("top_k", document.getElementById("opt-top-k").value);
      form.append("include_allow", document.getElementById("opt-include-allow").value);
      try {
        const payload = await api("/api/v1/score/upload", { method: "POST", body: form });
        renderBatch(payload);
      } catch (err) { showError(err.message); }
    });

    async function exportBatch(format) {
      if (!lastBatch) { return; }
      const resp = await fetch("/api/v1/export/batch?format=" + format, {
        method: "POST",
        credentials: "same-origin",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify(lastBatch)
      });
      if (!resp.ok) { showError("Export failed (" + resp.status + ")"); return; }
      const blob = await resp.blob();
      const url = URL.createObjectURL(blob);
      const a = document.createElement("a");
      a.href = url;
      a.download = "scores." + format;
      a.click();
      URL.revokeObjectURL(url);
    }
    document.getElementById("btn-export-xlsx").addEventListener("click", function () { exportBatch("xlsx"); });
    document.getElementById("btn-export-csv").addEventListener("click", function () { exportBatch("csv"); });

    document.getElementById("btn-status").addEventListener("click", async function () {
      const box = document.getElementById("status-box");
      box.textContent = "Checking...";
      try {
        const payload = await api("/api/v1/status/backend");
        const svc = payload.services && payload.services.scoring_api;
        if (svc && svc.ok) {
          const health = svc.health || {};
          box.textContent = "Scoring API: up" +
            (health.model_version ? " (model " + health.model_version + ")" : "");
        } else {
          box.textContent = "Scoring API: down" + (svc && svc.error ? " (" + svc.error + ")" : "");
        }
      } catch (err) { box.textContent = "Status check failed: " + err.message; }
    });

    document.getElementById("btn-reload").addEventListener("click", async function () {
      showError(null);
      try {
        const payload = await api("/api/v1/admin/reload", { method: "POST" });
        const data = payload.data || {};
        showError("Model reloaded" + (data.model_version ? " (" + data.model_version + ")" : "") + ".");
      } catch (err) { showError(err.message); }
    });

    (async function init() {
      try {
        const payload = await api("/api/v1/auth/session");
        setAuthenticated(payload.data && payload.data.authenticated ? payload.data.session : null);
      } catch (err) { setAuthenticated(null); }
    })();
  </script>
</body>
</html>
`
