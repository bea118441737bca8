package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/metrics/export/internaldefs"
)

// Source is read on every scrape. *goMFA.Engine implements it.
type Source interface {
	MetricsSnapshot() goMFA.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders an engine's counters and latency histogram.
type Exporter struct {
	source Source
}

// New returns an Exporter reading from engine.
func New(engine *goMFA.Engine) *Exporter {
	return &Exporter{source: engine}
}

func NewFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render on every request.
func (x *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(x.Render()))
	})
}

// Render returns the current exposition. Method-scoped verification counters
// are written as one series per method, labelled method="<name>". An engine
// with metrics disabled renders nothing.
func (x *Exporter) Render() string {
	if x == nil || x.source == nil {
		return ""
	}

	snap := x.source.MetricsSnapshot()
	dropped := x.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w exposition
	w.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		w.family(def.Name, def.Help, "counter")
		if !def.ID.ByMethod() {
			w.sample(def.Name, "", snap.Counters[def.ID])
			continue
		}
		series := snap.ByMethod[def.ID]
		for _, method := range goMFA.Methods {
			w.sample(def.Name, label(internaldefs.MethodLabel, string(method)), series[method])
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		w.family(def.Name, def.Help, "histogram")
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
		for i, le := range internaldefs.HistogramBounds {
			w.sample(def.Name+"_bucket", label(internaldefs.BoundLabel, le), cumulative[i])
		}
		w.sampleFloat(def.Name+"_sum", snap.HistogramSums[def.ID].Seconds())
		w.sample(def.Name+"_count", "", cumulative[len(cumulative)-1])
	}

	w.family(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	w.sample(internaldefs.AuditDroppedName, "", dropped)

	return w.String()
}

type exposition struct {
	strings.Builder
}

func (w *exposition) family(name, help, kind string) {
	w.WriteString("# HELP ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(escapeHelp(help))
	w.WriteString("\n# TYPE ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(kind)
	w.WriteByte('\n')
}

func (w *exposition) sample(name, labels string, v uint64) {
	w.series(name, labels)
	w.WriteString(strconv.FormatUint(v, 10))
	w.WriteByte('\n')
}

func (w *exposition) sampleFloat(name string, v float64) {
	w.series(name, "")
	w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	w.WriteByte('\n')
}

func (w *exposition) series(name, labels string) {
	w.WriteString(name)
	if labels != "" {
		w.WriteByte('{')
		w.WriteString(labels)
		w.WriteByte('}')
	}
	w.WriteByte(' ')
}

// label values here are method names and bucket bounds, never user input.
func label(key, value string) string {
	return key + `="` + value + `"`
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
