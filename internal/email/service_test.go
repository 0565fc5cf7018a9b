package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderConflictDigestTemplate(t *testing.T) {
	data := ConflictDigestData{
		AppName:      "Inkwell",
		UserName:     "Avery",
		ProjectTitle: "River Saga",
		Conflicts: []DigestConflict{
			{
				EntityName:   "Mara",
				PropertyName: "gender",
				ValueA:       "female",
				ValueB:       "male",
				Severity:     "critical",
			},
		},
	}

	html, err := renderTemplate(conflictDigestTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Inkwell") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Avery") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "River Saga") {
		t.Error("template should contain project title")
	}
	if !strings.Contains(html, "Mara") || !strings.Contains(html, "gender") {
		t.Error("template should list the conflict")
	}
	if !strings.Contains(html, "critical") {
		t.Error("template should show severity")
	}
}
