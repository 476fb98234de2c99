package exposition

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/padmexporter/padmexporter/internal/padm"
	"github.com/padmexporter/padmexporter/internal/store"
)

var (
	tempDef = padm.Definition{
		Label: "Temperature (C)",
		Name:  "padm_temperature_celsius",
		Help:  "Ambient temperature.",
		Kind:  padm.Gauge,
	}
	modeDef = padm.Definition{
		Label:     "Operating Mode",
		Name:      "padm_operating_mode",
		Help:      "Current operating mode.",
		Kind:      padm.Gauge,
		ModeLabel: true,
	}
	infoDef = padm.Definition{
		Label:     "Firmware Version",
		Name:      "padm_firmware_version_info",
		Help:      "Firmware version of the device.",
		Kind:      padm.Gauge,
		InfoLabel: "version",
	}
	countDef = padm.Definition{
		Label: "Contact Input Count",
		Name:  "padm_contact_input_count",
		Help:  "Total contact input events.",
		Kind:  padm.Counter,
	}
)

func scrape(t *testing.T, st *store.Store) string {
	t.Helper()
	srv := httptest.NewServer(NewRouter(st))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text exposition format", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func wantLines(t *testing.T, body string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if !strings.Contains(body, line) {
			t.Errorf("scrape missing %q\nbody:\n%s", line, body)
		}
	}
}

func TestMetrics_RendersSamples(t *testing.T) {
	st := store.New(90 * time.Second)
	st.Merge("lab", []padm.Reading{
		{Device: "CRAC-1", Definition: tempDef, Value: 21.5},
		{Device: "CRAC-2", Definition: tempDef, Value: 19},
	}, time.Now())

	body := scrape(t, st)
	wantLines(t, body,
		"# HELP padm_temperature_celsius Ambient temperature.",
		"# TYPE padm_temperature_celsius gauge",
		`padm_temperature_celsius{device="CRAC-1",target="lab"} 21.5`,
		`padm_temperature_celsius{device="CRAC-2",target="lab"} 19`,
	)
}

func TestMetrics_ModeAndInfoLabels(t *testing.T) {
	st := store.New(90 * time.Second)
	st.Merge("lab", []padm.Reading{
		{Device: "CRAC-1", Definition: modeDef, Mode: "Cooling", Value: 2},
		{Device: "CRAC-1", Definition: infoDef, Info: "2.06.1039", Value: 1},
	}, time.Now())

	body := scrape(t, st)
	wantLines(t, body,
		`padm_operating_mode{device="CRAC-1",target="lab",mode="Cooling"} 2`,
		`padm_firmware_version_info{device="CRAC-1",target="lab",version="2.06.1039"} 1`,
	)
}

func TestMetrics_CounterType(t *testing.T) {
	st := store.New(90 * time.Second)
	st.Merge("lab", []padm.Reading{
		{Device: "CRAC-1", Definition: countDef, Value: 42},
	}, time.Now())

	body := scrape(t, st)
	wantLines(t, body,
		"# TYPE padm_contact_input_count counter",
		`padm_contact_input_count{device="CRAC-1",target="lab"} 42`,
	)
}

func TestMetrics_StaleGaugeFlips(t *testing.T) {
	st := store.New(90 * time.Second)

	st.Merge("lab", []padm.Reading{{Device: "CRAC-1", Definition: tempDef, Value: 21.5}}, time.Now())
	wantLines(t, scrape(t, st),
		`padm_variable_stale{device="CRAC-1",target="lab",variable="padm_temperature_celsius"} 0`,
	)

	// Re-publish with a timestamp past the threshold: the stale gauge flips
	// to 1 while the value itself is still served.
	st.Merge("lab", []padm.Reading{{Device: "CRAC-1", Definition: tempDef, Value: 21.5}},
		time.Now().Add(-2*time.Minute))
	wantLines(t, scrape(t, st),
		`padm_temperature_celsius{device="CRAC-1",target="lab"} 21.5`,
		`padm_variable_stale{device="CRAC-1",target="lab",variable="padm_temperature_celsius"} 1`,
	)
}

func TestMetrics_TargetStatus(t *testing.T) {
	st := store.New(90 * time.Second)
	at := time.Now()

	st.SetStatus("lab", errors.New("connection refused"), at)
	st.SetStatus("lab", errors.New("connection refused"), at)
	wantLines(t, scrape(t, st),
		`padm_target_up{target="lab"} 0`,
		`padm_target_consecutive_failures{target="lab"} 2`,
		`padm_target_last_poll_success_timestamp_seconds{target="lab"} 0`,
	)

	ok := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.SetStatus("lab", nil, ok)
	wantLines(t, scrape(t, st),
		`padm_target_up{target="lab"} 1`,
		`padm_target_consecutive_failures{target="lab"} 0`,
		`padm_target_last_poll_success_timestamp_seconds{target="lab"} 1.7672256e+09`,
	)
}

func TestMetrics_EmptyStoreStillServes(t *testing.T) {
	st := store.New(90 * time.Second)

	body := scrape(t, st)
	if strings.Contains(body, "padm_temperature") {
		t.Errorf("empty store produced samples:\n%s", body)
	}
}

func TestMetrics_DeterministicOrdering(t *testing.T) {
	st := store.New(90 * time.Second)
	st.Merge("lab", []padm.Reading{
		{Device: "CRAC-2", Definition: tempDef, Value: 19},
		{Device: "CRAC-1", Definition: tempDef, Value: 21.5},
		{Device: "CRAC-1", Definition: countDef, Value: 42},
	}, time.Now())
	st.SetStatus("lab", nil, time.Now())

	first := scrape(t, st)
	for i := 0; i < 5; i++ {
		if got := scrape(t, st); got != first {
			t.Fatalf("scrape #%d differs from first scrape", i+1)
		}
	}

	// Families come out name-sorted, series label-sorted.
	ci := strings.Index(first, "# TYPE padm_contact_input_count")
	ti := strings.Index(first, "# TYPE padm_temperature_celsius")
	if ci < 0 || ti < 0 || ci > ti {
		t.Errorf("families not sorted by name:\n%s", first)
	}
	c1 := strings.Index(first, `padm_temperature_celsius{device="CRAC-1"`)
	c2 := strings.Index(first, `padm_temperature_celsius{device="CRAC-2"`)
	if c1 < 0 || c2 < 0 || c1 > c2 {
		t.Errorf("series not sorted by labels:\n%s", first)
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewRouter(store.New(time.Minute)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("body = %q, want status ok", body)
	}
}
