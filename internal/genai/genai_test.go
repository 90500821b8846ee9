package genai

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestToAIRole(t *testing.T) {
	tests := []struct {
		role string
		want ai.Role
	}{
		{RoleSystem, ai.RoleSystem},
		{RoleUser, ai.RoleUser},
		{RoleAssistant, ai.RoleModel},
		{RoleTool, ai.RoleTool},
		{"", ai.RoleUser},
		{"unknown", ai.RoleUser},
	}
	for _, tt := range tests {
		if got := toAIRole(tt.role); got != tt.want {
			t.Errorf("toAIRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestArgsAsMap(t *testing.T) {
	if got := argsAsMap(nil); got != nil {
		t.Errorf("argsAsMap(nil) = %v, want nil", got)
	}

	m := map[string]any{"location": "Tokyo"}
	if got := argsAsMap(m); got["location"] != "Tokyo" {
		t.Errorf("argsAsMap(map) = %v", got)
	}

	got := argsAsMap("raw string")
	if got["input"] != "raw string" {
		t.Errorf("argsAsMap(scalar) = %v, want wrapped under input", got)
	}
}
