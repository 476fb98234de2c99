package exposition

import (
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"

	"github.com/padmexporter/padmexporter/internal/padm"
	"github.com/padmexporter/padmexporter/internal/store"
)

// Self-metric names describing the exporter's own view of each target.
const (
	staleName       = "padm_variable_stale"
	upName          = "padm_target_up"
	failuresName    = "padm_target_consecutive_failures"
	lastSuccessName = "padm_target_last_poll_success_timestamp_seconds"
)

// render converts a store snapshot into metric families in deterministic
// order: families sorted by name, series sorted by label values. Determinism
// keeps scrape diffs and test assertions stable.
func render(snap store.Snapshot) []*dto.MetricFamily {
	byName := make(map[string]*dto.MetricFamily)

	family := func(name, help string, kind padm.Kind) *dto.MetricFamily {
		if mf, ok := byName[name]; ok {
			return mf
		}
		typ := dto.MetricType_GAUGE
		if kind == padm.Counter {
			typ = dto.MetricType_COUNTER
		}
		mf := &dto.MetricFamily{
			Name: proto.String(name),
			Help: proto.String(help),
			Type: typ.Enum(),
		}
		byName[name] = mf
		return mf
	}

	staleSeen := make(map[string]bool)
	for _, s := range snap.Samples {
		labels := []*dto.LabelPair{
			labelPair("device", s.Device),
			labelPair("target", s.Target),
		}
		if s.Definition.ModeLabel {
			labels = append(labels, labelPair("mode", s.Mode))
		}
		if s.Definition.InfoLabel != "" {
			labels = append(labels, labelPair(s.Definition.InfoLabel, s.Info))
		}

		mf := family(s.Definition.Name, s.Definition.Help, s.Definition.Kind)
		mf.Metric = append(mf.Metric, valueMetric(labels, s.Value, s.Definition.Kind))

		// One staleness signal per (target, device, variable): all series of
		// a variable come from the same fetch, so their staleness is uniform.
		staleKey := s.Target + "\x00" + s.Device + "\x00" + s.Definition.Name
		if !staleSeen[staleKey] {
			staleSeen[staleKey] = true
			var staleVal float64
			if s.Stale {
				staleVal = 1
			}
			sf := family(staleName,
				"Whether the last-known value for this variable is older than the staleness threshold.",
				padm.Gauge)
			sf.Metric = append(sf.Metric, valueMetric([]*dto.LabelPair{
				labelPair("device", s.Device),
				labelPair("target", s.Target),
				labelPair("variable", s.Definition.Name),
			}, staleVal, padm.Gauge))
		}
	}

	for _, st := range snap.Statuses {
		labels := []*dto.LabelPair{labelPair("target", st.Target)}

		var up float64
		if st.Up {
			up = 1
		}
		uf := family(upName, "Whether the last poll of this target succeeded.", padm.Gauge)
		uf.Metric = append(uf.Metric, valueMetric(labels, up, padm.Gauge))

		ff := family(failuresName, "Number of consecutive failed poll cycles for this target.", padm.Gauge)
		ff.Metric = append(ff.Metric, valueMetric(labels, float64(st.ConsecutiveFailures), padm.Gauge))

		var lastSuccess float64
		if !st.LastSuccess.IsZero() {
			lastSuccess = float64(st.LastSuccess.Unix())
		}
		lf := family(lastSuccessName, "Unix time of the last successful poll of this target.", padm.Gauge)
		lf.Metric = append(lf.Metric, valueMetric(labels, lastSuccess, padm.Gauge))
	}

	out := make([]*dto.MetricFamily, 0, len(byName))
	for _, mf := range byName {
		sortSeries(mf.Metric)
		out = append(out, mf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func labelPair(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func valueMetric(labels []*dto.LabelPair, value float64, kind padm.Kind) *dto.Metric {
	m := &dto.Metric{Label: labels}
	if kind == padm.Counter {
		m.Counter = &dto.Counter{Value: proto.Float64(value)}
	} else {
		m.Gauge = &dto.Gauge{Value: proto.Float64(value)}
	}
	return m
}

// sortSeries orders a family's series by their label signature.
func sortSeries(metrics []*dto.Metric) {
	sig := func(m *dto.Metric) string {
		var b strings.Builder
		for _, lp := range m.Label {
			b.WriteString(lp.GetName())
			b.WriteByte('=')
			b.WriteString(lp.GetValue())
			b.WriteByte(',')
		}
		return b.String()
	}
	sort.Slice(metrics, func(i, j int) bool { return sig(metrics[i]) < sig(metrics[j]) })
}
