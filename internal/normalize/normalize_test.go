package normalize

import "testing"

func TestUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ana", "ana"},
		{"Ana", "ana"},
		{"ANA", "ana"},
		{"  ana  ", "ana"},
		{"Straße", "strasse"},
		// Decomposed e + combining acute equals the precomposed form.
		{"Jose\u0301", "jos\u00e9"},
		{"ana\x00", "ana"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Username(tt.input)
			if result != tt.expected {
				t.Errorf("Username(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ana Lima", "Ana Lima"},
		{"  Ana   Lima ", "Ana Lima"},
		{"Ana\tLima", "Ana Lima"},
		{"Ana\x07", "Ana"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DisplayName(tt.input)
			if result != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTimezone(t *testing.T) {
	if got := Timezone(" Europe/Paris\n"); got != "Europe/Paris" {
		t.Errorf("Timezone() = %q, want %q", got, "Europe/Paris")
	}
}
