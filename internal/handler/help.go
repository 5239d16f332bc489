package handler

import "net/http"

const helpPage = `<!DOCTYPE html>
<html>
<head><title>stockledger</title></head>
<body>
<h1>stockledger</h1>
<h2>Submit an offer</h2>
<pre>GET  /offer/{operation};{broker};{stock};{price};{shares}
POST /offers   {"operation":"buy","broker":"alice","stock":"AAPL","price":"10.5","shares":5}</pre>
<p>operation is buy or sell. A sell is rejected when the broker holds fewer shares than requested.</p>
<h2>Query history</h2>
<pre>GET /info/{field}={value}
GET /offers?{field}={value}</pre>
<p>field is one of broker, operation or stock.</p>
<h2>Wallets</h2>
<pre>GET /wallets/{broker}/{stock}</pre>
</body>
</html>
`

// Help handles GET / with the usage page.
func Help(w http.ResponseWriter, _ *http.Request) {
	writeHelp(w, http.StatusOK)
}

// NotFound answers unknown routes with the usage page.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeHelp(w, http.StatusNotFound)
}

func writeHelp(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(helpPage))
}
