package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() ownid.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter reads a client's metrics on every scrape.
type Exporter struct {
	source metricsSource
}

// New returns an exporter over client.
func New(client *ownid.Client) *Exporter {
	return &Exporter{source: client}
}

// NewFromSource returns an exporter over any metrics source.
func NewFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the metrics page.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = e.Write(w)
	})
}

// Render returns the metrics page as a string. It is empty when metrics are
// disabled and nothing was dropped.
func (e *Exporter) Render() string {
	var b strings.Builder
	_ = e.Write(&b)
	return b.String()
}

// Write renders the metrics page to w.
func (e *Exporter) Write(w io.Writer) error {
	if e == nil || e.source == nil {
		return nil
	}
	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	for _, def := range internaldefs.Counters {
		counter(bw, def, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.Histograms {
		histogram(bw, def, internaldefs.Cumulative(snapshot.Histograms[def.ID]))
	}
	counter(bw, internaldefs.AuditDropped, dropped)
	return bw.Flush()
}

func header(w *bufio.Writer, def internaldefs.Def, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", def.Name, escapeHelp(def.Help), def.Name, kind)
}

func counter(w *bufio.Writer, def internaldefs.Def, value uint64) {
	header(w, def, "counter")
	fmt.Fprintf(w, "%s %d\n", def.Name, value)
}

func histogram(w *bufio.Writer, def internaldefs.Def, cumulative [8]uint64) {
	header(w, def, "histogram")
	for i, le := range internaldefs.Bounds {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", def.Name, le, cumulative[i])
	}
	fmt.Fprintf(w, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	fmt.Fprintf(w, "%s_sum 0\n", def.Name)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
