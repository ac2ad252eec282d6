package dashboard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kjstillabower/capital-weather-dashboard/internal/models"
)

func renderView(t *testing.T, v View) string {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, v); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestRenderer_Snapshot(t *testing.T) {
	s := loadedSession(t, newFakeBackend())
	page := renderView(t, s.View())

	for _, want := range []string{
		"10°C / 15°C",
		"3.5 m/s",
		"60%",
		"1012 hPa",
		`action="/refresh/temperature"`,
		`<option value="DE" selected>Germany</option>`,
		`<option value="FR">France</option>`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, " disabled aria-busy") {
		t.Error("no refresh button should be disabled")
	}
	if strings.Contains(page, `role="alert"`) {
		t.Error("no banner expected")
	}
}

func TestRenderer_RefreshingButtonDisabled(t *testing.T) {
	s := loadedSession(t, newFakeBackend())
	v := s.View()
	for i := range v.Widgets {
		if v.Widgets[i].Name == models.WidgetHumidity {
			v.Widgets[i].State = WidgetRefreshing
		}
	}
	page := renderView(t, v)

	if strings.Count(page, " disabled aria-busy") != 1 {
		t.Errorf("want exactly one disabled button, page:\n%s", page)
	}
	if !strings.Contains(page, "Refreshing…") {
		t.Error("refreshing widget should show its spinner text")
	}
}

func TestRenderer_BannerAndNoData(t *testing.T) {
	page := renderView(t, View{Error: `Failed to refresh <b>x</b> data.`})

	if !strings.Contains(page, "Failed to refresh &lt;b&gt;x&lt;/b&gt; data.") {
		t.Error("banner should be HTML-escaped")
	}
	if !strings.Contains(page, `action="/dismiss"`) {
		t.Error("banner should carry a dismiss form")
	}
	if !strings.Contains(page, "No weather data available.") {
		t.Error("empty view should say no data")
	}
	if strings.Contains(page, "country-select") {
		t.Error("selector should be hidden without countries")
	}
}

func TestRenderer_Loading(t *testing.T) {
	page := renderView(t, View{Loading: true, Countries: []models.Country{{Name: "Germany", Capital: "Berlin", Code: "DE"}}})

	if !strings.Contains(page, "Loading…") {
		t.Error("loading view should show the loader")
	}
	if strings.Contains(page, "No weather data available.") {
		t.Error("loading view should not say no data")
	}
}
