package padm

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"strconv"
)

// Reading is one variable observation from a single device on a target,
// already resolved against the tracked definition set.
type Reading struct {
	Device     string
	Definition Definition

	// Mode is the enum name for mode-labelled variables, empty otherwise.
	Mode string

	// Info is the raw value string for info-style variables, empty otherwise.
	Info string

	Value float64
}

// apiEnvelope mirrors the /api/variables response body.
type apiEnvelope struct {
	Data []struct {
		Attributes apiAttributes `json:"attributes"`
	} `json:"data"`
}

type apiAttributes struct {
	DeviceID   int64  `json:"device_id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	RawValue   string `json:"raw_value"`
	EnumValues []struct {
		Name string `json:"name"`
	} `json:"enum_values"`
}

// decodeReadings parses a variables response into readings, keeping only
// variables present in defs. Untracked labels are skipped silently; tracked
// variables whose raw value does not parse are logged and skipped, so a
// single bad value never fails the whole cycle.
func decodeReadings(r io.Reader, defs map[string]Definition) ([]Reading, error) {
	var env apiEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, &ParseError{Err: err}
	}

	readings := make([]Reading, 0, len(env.Data))
	for _, item := range env.Data {
		attr := item.Attributes
		def, ok := defs[attr.Label]
		if !ok {
			continue
		}

		reading := Reading{Device: attr.DeviceName, Definition: def}

		if def.InfoLabel != "" {
			// Info-style metrics are fixed at 1; the value travels in a label.
			reading.Info = attr.Value
			reading.Value = 1
		} else {
			v, err := strconv.ParseFloat(attr.RawValue, 64)
			if err != nil {
				slog.Warn("padm: unparseable raw value",
					"label", attr.Label, "device", attr.DeviceName, "raw_value", attr.RawValue)
				continue
			}
			// The PADM UI shows one decimal; match it.
			reading.Value = math.Round(v*10) / 10
		}

		if def.ModeLabel {
			reading.Mode = attr.Value
		}

		readings = append(readings, reading)
	}
	return readings, nil
}
