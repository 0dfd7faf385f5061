package api

import (
	"net/http"
)

const operatorUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sentient Dialogue - Operator</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: monospace;
            background: #1a1a2e;
            color: #eee;
            height: 100vh;
            display: flex;
            flex-direction: column;
        }
        header {
            background: #16213e;
            padding: 12px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #status { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #status.connected { background: #1b4332; color: #95d5b2; }
        #status.disconnected { background: #7f1d1d; color: #fca5a5; }
        #status.connecting { background: #78350f; color: #fcd34d; }
        #stage { padding: 16px 20px; border-bottom: 1px solid #0f3460; }
        #phase { color: #888; font-size: 12px; margin-bottom: 8px; }
        #speaker { color: #fcd34d; margin-bottom: 4px; }
        #text { min-height: 3em; white-space: pre-wrap; }
        #choices button { display: block; margin-top: 6px; }
        #controls { padding: 10px 20px; border-bottom: 1px solid #0f3460; }
        button {
            background: #0f3460; color: #eee; border: 1px solid #1f4f8a;
            padding: 6px 14px; font-family: monospace; cursor: pointer;
        }
        button:hover { background: #1f4f8a; }
        #result { margin-left: 12px; font-size: 12px; }
        #log { flex: 1; overflow-y: auto; padding: 10px 20px; font-size: 12px; }
        .event { padding: 2px 0; border-bottom: 1px solid #222; }
        .event .ts { color: #666; }
        .event.warn .name { color: #fcd34d; }
        .event.error .name { color: #fca5a5; }
    </style>
</head>
<body>
    <header>
        <h1>Sentient Dialogue</h1>
        <span id="status" class="connecting">connecting</span>
    </header>
    <section id="stage">
        <div id="phase">-</div>
        <div id="speaker"></div>
        <div id="text"></div>
        <div id="choices"></div>
    </section>
    <section id="controls">
        <button onclick="send('begin')">Begin</button>
        <button onclick="send('press')">Press</button>
        <button onclick="send('skip')">Skip</button>
        <button onclick="send('advance')">Advance</button>
        <button onclick="send('reset')">Reset</button>
        <span id="result"></span>
    </section>
    <div id="log"></div>
    <script>
        var logEl = document.getElementById('log');
        var statusEl = document.getElementById('status');
        var resultEl = document.getElementById('result');
        var reconnectTimer = null;

        function render(st) {
            document.getElementById('phase').textContent =
                (st.sequence_id || '') + ' #' + st.cursor + ' ' + st.phase;
            document.getElementById('speaker').textContent = st.speaker || '';
            document.getElementById('text').textContent = st.revealed_text || '';
            var box = document.getElementById('choices');
            box.innerHTML = '';
            (st.choices || []).forEach(function(c, i) {
                var b = document.createElement('button');
                b.textContent = (i + 1) + '. ' + c.label;
                b.onclick = function() { send('choice', {choice: i}); };
                box.appendChild(b);
            });
        }

        function refresh() {
            fetch('/dialogue/state')
                .then(function(res) { return res.json(); })
                .then(function(st) { if (st.phase) render(st); })
                .catch(function() {});
        }

        function send(action, body) {
            fetch('/dialogue/' + action, {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: body ? JSON.stringify(body) : null
            })
            .then(function(res) { return res.json(); })
            .then(function(data) {
                resultEl.textContent = data.ok ? (data.accepted ? action : action + ' ignored') : (data.error || 'failed');
                if (data.state) render(data.state);
            })
            .catch(function() { resultEl.textContent = 'network error'; });
        }

        function renderEvent(e) {
            var div = document.createElement('div');
            div.className = 'event ' + e.level;
            var ts = document.createElement('span');
            ts.className = 'ts';
            ts.textContent = e.ts.substring(11, 23) + ' ';
            var name = document.createElement('span');
            name.className = 'name';
            name.textContent = e.event;
            div.appendChild(ts);
            div.appendChild(name);
            if (e.fields) div.appendChild(document.createTextNode(' ' + JSON.stringify(e.fields)));
            logEl.insertBefore(div, logEl.firstChild);
            while (logEl.childNodes.length > 500) logEl.removeChild(logEl.lastChild);
        }

        function setStatus(s) {
            statusEl.className = s;
            statusEl.textContent = s;
        }

        function connect() {
            setStatus('connecting');
            var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            var ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            ws.onopen = function() { setStatus('connected'); refresh(); };
            ws.onmessage = function(msg) {
                renderEvent(JSON.parse(msg.data));
                refresh();
            };
            ws.onclose = function() {
                setStatus('disconnected');
                clearTimeout(reconnectTimer);
                reconnectTimer = setTimeout(connect, 2000);
            };
        }

        document.addEventListener('keydown', function(e) {
            if (e.target.tagName === 'INPUT') return;
            if (e.key === ' ') { e.preventDefault(); send('press'); }
            else if (e.key === 'Enter') send('advance');
            else if (e.key >= '1' && e.key <= '9') send('choice', {choice: parseInt(e.key, 10) - 1});
        });

        connect();
    </script>
</body>
</html>`

// uiHandler serves the operator console. Unknown paths fall through to it
// on the "/" pattern, so anything else is a 404.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(operatorUIHTML))
}
