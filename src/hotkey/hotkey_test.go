package hotkey

import (
	"testing"
)

func TestRawcodesFor(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"cmd", []uint16{91, 92}},

		// Letter keys
		{"s", []uint16{83}},
		{"a", []uint16{65}},
		{"z", []uint16{90}},

		// Number keys
		{"0", []uint16{48}},
		{"9", []uint16{57}},

		// Function keys
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"f25", nil},
		{"f0", nil},

		// Special keys
		{"space", []uint16{32}},
		{"enter", []uint16{13}},
		{"esc", []uint16{27}},

		// Unknown key
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := rawcodesFor(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Errorf("rawcodesFor(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("rawcodesFor(%q)[%d] = %d, expected %d",
						tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+S", []string{"ctrl", "alt", "s"}},
		{"Ctrl+Shift+O", []string{"ctrl", "shift", "o"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Ctrl+Shift+F13", []string{"ctrl", "shift", "f13"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Win+Shift+S", []string{"cmd", "shift", "s"}},
		{"Super+Alt+T", []string{"cmd", "alt", "t"}},
		{" Ctrl + Alt + s ", []string{"ctrl", "alt", "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseCombo(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("parseCombo(%q) returned %d keys, expected %d",
					tt.input, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseCombo(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}
