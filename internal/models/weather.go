package models

import (
	"fmt"
)

// Widget names one independently refreshable weather metric.
type Widget string

const (
	WidgetTemperature Widget = "temperature"
	WidgetHumidity    Widget = "humidity"
	WidgetPressure    Widget = "pressure"
	WidgetWindSpeed   Widget = "wind_speed"
)

// Widgets lists every recognized widget in display order.
var Widgets = []Widget{WidgetTemperature, WidgetWindSpeed, WidgetHumidity, WidgetPressure}

// ParseWidget returns the Widget for name, or an error when name is not one of the four metrics.
func ParseWidget(name string) (Widget, error) {
	switch w := Widget(name); w {
	case WidgetTemperature, WidgetHumidity, WidgetPressure, WidgetWindSpeed:
		return w, nil
	}
	return "", fmt.Errorf("unknown widget %q", name)
}

// Temperature is the min/max pair reported for a capital, in degrees Celsius.
type Temperature struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// WeatherSnapshot is one point-in-time reading in metric units.
type WeatherSnapshot struct {
	Temperature Temperature `json:"temperature"`
	Humidity    float64     `json:"humidity"`
	Pressure    float64     `json:"pressure"`
	WindSpeed   float64     `json:"wind_speed"`
}

// SnapshotPatch carries a subset of snapshot fields. A widget response is a patch
// with exactly one field set, so it encodes as {"<widget>": value}.
type SnapshotPatch struct {
	Temperature *Temperature `json:"temperature,omitempty"`
	Humidity    *float64     `json:"humidity,omitempty"`
	Pressure    *float64     `json:"pressure,omitempty"`
	WindSpeed   *float64     `json:"wind_speed,omitempty"`
}

// Patch extracts the single field named by w.
func (s WeatherSnapshot) Patch(w Widget) (SnapshotPatch, error) {
	switch w {
	case WidgetTemperature:
		t := s.Temperature
		return SnapshotPatch{Temperature: &t}, nil
	case WidgetHumidity:
		v := s.Humidity
		return SnapshotPatch{Humidity: &v}, nil
	case WidgetPressure:
		v := s.Pressure
		return SnapshotPatch{Pressure: &v}, nil
	case WidgetWindSpeed:
		v := s.WindSpeed
		return SnapshotPatch{WindSpeed: &v}, nil
	}
	return SnapshotPatch{}, fmt.Errorf("unknown widget %q", w)
}

// Has reports whether the patch carries a value for w.
func (p SnapshotPatch) Has(w Widget) bool {
	switch w {
	case WidgetTemperature:
		return p.Temperature != nil
	case WidgetHumidity:
		return p.Humidity != nil
	case WidgetPressure:
		return p.Pressure != nil
	case WidgetWindSpeed:
		return p.WindSpeed != nil
	}
	return false
}

// Apply returns a copy of s with the value for w taken from p.
// Returns an error and leaves s untouched when p has no value for w.
func (s WeatherSnapshot) Apply(w Widget, p SnapshotPatch) (WeatherSnapshot, error) {
	if !p.Has(w) {
		return s, fmt.Errorf("response has no value for widget %q", w)
	}
	out := s
	switch w {
	case WidgetTemperature:
		out.Temperature = *p.Temperature
	case WidgetHumidity:
		out.Humidity = *p.Humidity
	case WidgetPressure:
		out.Pressure = *p.Pressure
	case WidgetWindSpeed:
		out.WindSpeed = *p.WindSpeed
	}
	return out, nil
}
