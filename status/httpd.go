// Package status serves the Prometheus metrics and a human readable status
// page over HTTP.
package status

import (
	"fmt"
	htmltemplate "html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/state"
	"github.com/darkforest-tools/sophon/utils"
)

// StateSource provides a consistent copy of the monitor state
type StateSource interface {
	Snapshot() state.MonitorState
}

// StartHTTPServer starts the HTTP server in the background if an address is
// configured.
func StartHTTPServer(c config.Config, src StateSource) {
	if c.HTTP.Address == "" {
		logrus.Info("HTTP stats server disabled")
		return
	}
	logrus.WithField("address", c.HTTP.Address).Info("HTTP stats server enabled")
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/", NewPage(c, src))
	go func() {
		err := http.ListenAndServe(c.HTTP.Address, nil)
		logrus.Fatalf("HTTP server error: %v", err)
	}()
}

// NewPage returns the status page handler
func NewPage(c config.Config, src StateSource) *Page {
	return &Page{
		c:     c,
		src:   src,
		start: time.Now(),
	}
}

type Page struct {
	c     config.Config
	src   StateSource
	start time.Time
}

const statusTemplateString = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Sophon Status</title>
	<style>
		body          { font-family: sans-serif; }
		table, td, th { border: 1px solid #ccc; border-collapse: collapse; }
		td, th        { padding: 5px; text-align: left; }
		td.num        { text-align: right; }
		a             { text-decoration: none; color: #3c6ac5; }
	</style>
</head>
<body>
	<h1>Sophon Status</h1>
	<p>
		<a href="/metrics">Prometheus metrics</a>
	</p>
	<p>Version {{ .Config.Version }}, up {{ .Uptime }}</p>

	<h2>High-water marks</h2>
	<table>
		<tr><th>Mark</th><th>Value</th></tr>
		<tr><td>Most pending transfers</td><td class="num">{{ .State.MostPendingTransfers }}</td></tr>
		<tr><td>Significant transfer id</td><td class="num">{{ .State.SignificantTransferID }}</td></tr>
		<tr><td>Longest transfer duration</td><td class="num">{{ .State.LongestTransferDuration }}</td></tr>
		<tr><td>Most value moved</td><td class="num">{{ .State.MostValueMoved }}</td></tr>
		<tr><td>Achievement rank</td><td class="num">{{ .State.AchievementRank }}</td></tr>
		<tr><td>Artifact tier</td><td class="num">{{ .State.ArtifactTier }}</td></tr>
		<tr><td>Significant radius</td><td class="num">{{ .State.SignificantRadius }}</td></tr>
		<tr><td>Significant player count</td><td class="num">{{ .State.SignificantPlayerCount }}</td></tr>
	</table>

	<h2>Pending alerts ({{ len .Queue }})</h2>
	{{ if .Queue }}
	<table>
		<tr><th>#</th><th>Alert</th></tr>
		{{ range $i, $text := .Queue }}
		<tr><td class="num">{{ $i }}</td><td>{{ $text }}</td></tr>
		{{ end }}
	</table>
	{{ else }}
	<p>Queue is empty.</p>
	{{ end }}

	<h2>Config</h2>
	<pre>{{ .Config.String }}</pre>

</body>
</html>`

var statusTemplate *htmltemplate.Template

func init() {
	var err error
	statusTemplate, err = htmltemplate.New("status").Parse(statusTemplateString)
	if err != nil {
		log.Fatalf("BUG: Error in status HTML template: %v", err)
	}
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ms := p.src.Snapshot()
	queue := make([]string, len(ms.PendingAlerts))
	for i, text := range ms.PendingAlerts {
		queue[i] = utils.DisplayText(text, 280)
	}

	data := struct {
		Config config.Config
		State  state.Marks
		Queue  []string
		Uptime time.Duration
	}{
		Config: p.c,
		State:  ms.Marks,
		Queue:  queue,
		Uptime: time.Since(p.start).Round(time.Second),
	}

	err := statusTemplate.Execute(w, data)
	if err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(fmt.Sprintf("Template execution error: %v", err)))
	}
}
