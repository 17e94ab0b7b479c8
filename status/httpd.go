package status

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/PowerDNS/deltasnap/config"
	"github.com/PowerDNS/deltasnap/protocol"
	"github.com/PowerDNS/deltasnap/replicator"
)

// checkpointListTimeout limits the storage listing done for a page view
const checkpointListTimeout = 5 * time.Second

func StartHTTPServer(c config.Config) {
	if c.HTTP.Address == "" {
		logrus.Info("HTTP stats server disabled")
		return
	}
	logrus.WithField("address", c.HTTP.Address).Info("HTTP stats server enabled")
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/", &Page{
		c: c,
	})
	go func() {
		err := http.ListenAndServe(c.HTTP.Address, nil)
		logrus.Fatalf("HTTP server error: %v", err)
	}()
}

type Page struct {
	c config.Config
}

const statusTemplateString = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>deltasnap Status</title>
	<style>
		body          { font-family: sans-serif; }
		table, td, th { border: 1px solid #ccc; border-collapse: collapse; }
		td, th        { padding: 5px; text-align: left; }
		td.num        { text-align: right; }
		td.error      { background-color: #ffb8b8; }
		a             { text-decoration: none; color: #3c6ac5; }
	</style>
</head>
<body>
	<h1>deltasnap Status</h1>
	<p>
		<a href="/metrics">Prometheus metrics</a> |
		<a href="/healthz">Health</a>
	</p>

	<h2>Replicators</h2>
	<table>
		<tr>
			<th>Name</th><th>Objects</th><th>Entries</th><th>Size</th>
			<th>Connections</th><th>Last tick</th><th>Frames</th><th>Failed</th>
		</tr>
		{{- range .Replicators }}
		<tr>
			<td>{{ .Name }}</td>
			<td class="num">{{ .Objects }}</td>
			<td class="num">{{ .Entries }}</td>
			<td class="num">{{ .Size.HumanReadable }}</td>
			<td class="num">{{ .Connections }}</td>
			<td class="num">{{ .LastTick.Tick }} ({{ .LastTick.Duration }})</td>
			<td class="num">{{ .LastTick.Frames }}</td>
			<td class="num{{ if .LastTick.FailedFrames }} error{{ end }}">{{ .LastTick.FailedFrames }}</td>
		</tr>
		{{- end }}
	</table>

	<h2>Checkpoints</h2>
	{{ if .CheckpointsErr }}
	<p class="error">{{ .CheckpointsErr }}</p>
	{{ else }}
	<table>
		<tr><th>Replicator</th><th>Instance</th><th>Time</th><th>Name</th></tr>
		{{- range .Checkpoints }}
		<tr>
			<td>{{ .ReplicatorName }}</td>
			<td>{{ .InstanceID }}</td>
			<td>{{ .Timestamp.Format "2006-01-02 15:04:05.000" }}</td>
			<td>{{ .FullName }}</td>
		</tr>
		{{- end }}
	</table>
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

	ctx, cancel := context.WithTimeout(r.Context(), checkpointListTimeout)
	defer cancel()
	checkpoints, err := gi.Checkpoints(ctx)

	data := struct {
		Config         config.Config
		Replicators    []replicator.Info
		Checkpoints    []protocol.NameInfo
		CheckpointsErr error
	}{
		Config:         p.c,
		Replicators:    gi.Replicators(),
		Checkpoints:    checkpoints,
		CheckpointsErr: err,
	}

	err = statusTemplate.Execute(w, data)
	if err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(fmt.Sprintf("Template execution error: %v", err)))
	}
}
