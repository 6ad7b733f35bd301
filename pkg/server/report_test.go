package server

import (
	"strings"
	"testing"
)

func TestRenderReport(t *testing.T) {
	report := "## Summary\nFindings here.\n\n### Sources:\n1. http://a"

	tests := []struct {
		name        string
		format      string
		wantType    string
		wantExt     string
		contains    string
		notContains string
		wantErr     bool
	}{
		{
			name:     "Default is markdown",
			format:   "",
			wantType: "text/markdown; charset=utf-8",
			wantExt:  "md",
			contains: "# Research: Go generics\n\n## Summary",
		},
		{
			name:     "Explicit markdown",
			format:   "markdown",
			wantType: "text/markdown; charset=utf-8",
			wantExt:  "md",
			contains: "### Sources:",
		},
		{
			name:        "Text strips heading markers",
			format:      "text",
			wantType:    "text/plain; charset=utf-8",
			wantExt:     "txt",
			contains:    "Summary\nFindings here.",
			notContains: "##",
		},
		{
			name:    "Unknown format rejected",
			format:  "pdf",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, contentType, ext, err := RenderReport("Go generics", report, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RenderReport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if contentType != tt.wantType {
				t.Errorf("contentType = %q, want %q", contentType, tt.wantType)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, want %q", ext, tt.wantExt)
			}
			if tt.contains != "" && !strings.Contains(content, tt.contains) {
				t.Errorf("content missing %q:\n%s", tt.contains, content)
			}
			if tt.notContains != "" && strings.Contains(content, tt.notContains) {
				t.Errorf("content should not contain %q:\n%s", tt.notContains, content)
			}
		})
	}
}
