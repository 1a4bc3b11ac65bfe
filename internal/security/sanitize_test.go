package security

import "testing"

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Bydgoszcz", "Bydgoszcz"},
		{"trims", "  Kraków \n", "Kraków"},
		{"script tag", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"ampersand first", "a&b", "a&amp;b"},
		{"existing entity is escaped again", "&lt;", "&amp;lt;"},
		{"quotes", `O'Brien "town"`, "O&#x27;Brien &quot;town&quot;"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_NonString(t *testing.T) {
	if got := Sanitize(42); got != 42 {
		t.Errorf("Sanitize(42) = %v, want 42", got)
	}
	if got := Sanitize(nil); got != nil {
		t.Errorf("Sanitize(nil) = %v, want nil", got)
	}
	if got := Sanitize(" <b> "); got != "&lt;b&gt;" {
		t.Errorf("Sanitize(string) = %v, want &lt;b&gt;", got)
	}
}
