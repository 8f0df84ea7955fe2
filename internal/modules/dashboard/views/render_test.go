package views

import (
	"bytes"
	"html/template"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

func TestLoadTemplates_success(t *testing.T) {
	err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory; ParseFS finds nothing to parse.
	err := loadTemplatesFromFS(fstest.MapFS{}, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/dashboard.html":       {Data: []byte("{{ .")},
		"templates/partials/status.html": {Data: []byte("ok")},
	}
	err := loadTemplatesFromFS(badFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestRenderDashboard_notLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	var buf bytes.Buffer
	err := RenderDashboard(&buf, &DashboardData{})
	if err == nil {
		t.Fatal("RenderDashboard() = nil; want error when templates not loaded")
	}
	if !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
	}
	if err := RenderStatusPartial(&buf, &StatusData{}); err == nil {
		t.Fatal("RenderStatusPartial() = nil; want error when templates not loaded")
	}
}

func loaded(t *testing.T) {
	t.Helper()
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v", err)
	}
}

func TestRenderDashboard_credentialsDialog(t *testing.T) {
	loaded(t)

	tests := []struct {
		name       string
		required   bool
		wantDialog bool
	}{
		{name: "credentials mode", required: true, wantDialog: true},
		{name: "open mode", required: false, wantDialog: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			data := &DashboardData{Status: StatusData{PollSeconds: 5}, CredentialsRequired: tt.required, Version: "test"}
			if err := RenderDashboard(&buf, data); err != nil {
				t.Fatalf("RenderDashboard() = %v", err)
			}
			body := buf.String()
			if got := strings.Contains(body, "<dialog"); got != tt.wantDialog {
				t.Errorf("dialog present = %v; want %v", got, tt.wantDialog)
			}
			if got := strings.Contains(body, `name="credentials" autocomplete="off" required pattern=".*\S.*"`); got != tt.wantDialog {
				t.Errorf("non-blank credentials input present = %v; want %v", got, tt.wantDialog)
			}
			for _, want := range []string{"<!DOCTYPE html>", `hx-post="/control/reset"`, `hx-post="/refresh"`, "Loading", "every 5s"} {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestRenderStatusPartial(t *testing.T) {
	loaded(t)

	data := &StatusData{
		Display: types.Display{
			Loaded:         true,
			TotalRecords:   12,
			LastPwrTrigger: "2024-05-01 10:00:00",
			LastPing:       "2024-05-01 10:05:00",
			PingDelta:      "4 seconds",
			ResetDelta:     "Never",
			LastMotion:     "Never",
			ErrorMessage:   "An error occurred while fetching data.",
		},
		Chart:       template.HTML(`<svg id="c"></svg>`),
		PollSeconds: 5,
	}
	var buf bytes.Buffer
	if err := RenderStatusPartial(&buf, data); err != nil {
		t.Fatalf("RenderStatusPartial() = %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		`id="total-records">12<`,
		"4 seconds",
		`id="reset-delta">Never<`,
		`id="last-motion">Never<`,
		"An error occurred while fetching data.",
		`<svg id="c"></svg>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "pc-status") {
		t.Error("pc status rendered although absent")
	}
}
