package padm

import "fmt"

// Kind is the exposed metric type of a variable.
type Kind string

const (
	Gauge   Kind = "gauge"
	Counter Kind = "counter"
)

// Definition maps one PADM variable label to its exported metric.
// Definitions are immutable after Resolve.
type Definition struct {
	// Label is the upstream variable label as returned by /api/variables.
	Label string

	// Name is the exported metric name, including the padm_ prefix.
	Name string

	Help string
	Kind Kind

	// ModeLabel marks enum-valued variables: the numeric value comes from
	// raw_value and the human-readable enum name is exported as a "mode" label.
	ModeLabel bool

	// InfoLabel, when non-empty, marks an info-style metric: the value is
	// fixed at 1 and the upstream value string is exported under this label.
	InfoLabel string
}

// catalog is the built-in mapping of every PADM variable label this exporter
// understands. Labels not present here (and not added via custom variables)
// are ignored when they appear in an API response.
var catalog = map[string]Definition{
	"Firmware Version": {
		Name:      "padm_firmware_version_info",
		Help:      "Firmware version of the device.",
		Kind:      Gauge,
		InfoLabel: "version",
	},
	"Operating Mode": {
		Name:      "padm_operating_mode",
		Help:      "Current mode of operation of the device.",
		Kind:      Gauge,
		ModeLabel: true,
	},
	"LCD Display Units (Cooling)": {
		Name:      "padm_lcd_display_units",
		Help:      "Units displayed on the LCD screen of the device.",
		Kind:      Gauge,
		ModeLabel: true,
	},
	"Dehumidifying Mode": {
		Name: "padm_dehumidifier_enabled",
		Help: "Whether the dehumidifier is enabled on the device.",
		Kind: Gauge,
	},
	"Water Fault": {
		Name: "padm_water_fault_active",
		Help: "Whether a water fault is present.",
		Kind: Gauge,
	},
	"Fan Speed - Auto": {
		Name: "padm_automatic_fan_speed_enabled",
		Help: "Whether automatic fan speed is enabled on the device.",
		Kind: Gauge,
	},
	"Fan Speed": {
		Name:      "padm_fan_speed",
		Help:      "The current fan speed of the device.",
		Kind:      Gauge,
		ModeLabel: true,
	},
	"Fan Always On": {
		Name: "padm_fan_always_on_enabled",
		Help: "Whether the fan always on setting is enabled on the device.",
		Kind: Gauge,
	},
	"Quiet Mode": {
		Name: "padm_quiet_mode_enabled",
		Help: "Whether quiet mode is enabled on the device.",
		Kind: Gauge,
	},
	"Set Point Temperature (C)": {
		Name: "padm_set_point_temperature_celsius",
		Help: "Set point temperature of the device, in degrees Celsius.",
		Kind: Gauge,
	},
	"Remote Temperature Sensor": {
		Name: "padm_remote_temperature_sensor_enabled",
		Help: "Whether a remote temperature sensor is enabled on the device.",
		Kind: Gauge,
	},
	"Return Air Temperature (C)": {
		Name: "padm_return_air_temperature_celsius",
		Help: "Return air temperature currently reported by the device, in degrees Celsius.",
		Kind: Gauge,
	},
	"Remote Set Point Temperature (C)": {
		Name: "padm_remote_set_point_temperature_celsius",
		Help: "Set point temperature of the remote sensor of the device, in degrees Celsius.",
		Kind: Gauge,
	},
	"Temperature (C)": {
		Name: "padm_temperature_celsius",
		Help: "Ambient temperature currently reported by the device, in degrees Celsius.",
		Kind: Gauge,
	},
	"Temperature Supported": {
		Name: "padm_temperature_supported",
		Help: "Whether the device supports temperature sensing.",
		Kind: Gauge,
	},
	"Humidity Supported": {
		Name: "padm_humidity_supported",
		Help: "Whether the device supports humidity sensing.",
		Kind: Gauge,
	},
	"Contact Input Count": {
		Name: "padm_contact_input_count",
		Help: "GPIO input contact counter of the device.",
		Kind: Counter,
	},
	"Contact Output Count": {
		Name: "padm_contact_output_count",
		Help: "GPIO output contact counter of the device.",
		Kind: Counter,
	},
	"Temperature (C) Low Critical Threshold": {
		Name: "padm_temp_low_crit_threshold",
		Help: "Critically low temperature threshold configured on the device.",
		Kind: Gauge,
	},
	"Temperature (C) High Critical Threshold": {
		Name: "padm_temp_high_crit_threshold",
		Help: "Critically high temperature threshold configured on the device.",
		Kind: Gauge,
	},
	"Cooling Mode": {
		Name: "padm_cooling_enabled",
		Help: "Whether the cooling mode is enabled on the device.",
		Kind: Gauge,
	},
	"Fan Speed Setting": {
		Name:      "padm_fan_speed_setting",
		Help:      "The current fan speed setting of the device.",
		Kind:      Gauge,
		ModeLabel: true,
	},
	"Fault Conditions": {
		Name: "padm_fault_conditions",
		Help: "Whether the device is reporting any faults.",
		Kind: Gauge,
	},
	"Device Up": {
		Name: "padm_device_up",
		Help: "Whether the device is detected and enabled.",
		Kind: Gauge,
	},
}

// Resolve builds the tracked definition set for one target.
//
// labels selects which catalog entries to track; an empty list tracks the
// whole catalog. custom entries are added on top and may override catalog
// entries with the same label. An unknown label is a configuration error.
func Resolve(labels []string, custom []Definition) (map[string]Definition, error) {
	defs := make(map[string]Definition)

	if len(labels) == 0 {
		for label, def := range catalog {
			def.Label = label
			defs[label] = def
		}
	} else {
		for _, label := range labels {
			def, ok := catalog[label]
			if !ok {
				if _, isCustom := findCustom(custom, label); isCustom {
					continue // defined below
				}
				return nil, fmt.Errorf("unknown variable label %q", label)
			}
			def.Label = label
			defs[label] = def
		}
	}

	for _, def := range custom {
		if def.Kind == "" {
			def.Kind = Gauge
		}
		defs[def.Label] = def
	}

	return defs, nil
}

func findCustom(custom []Definition, label string) (Definition, bool) {
	for _, def := range custom {
		if def.Label == label {
			return def, true
		}
	}
	return Definition{}, false
}
