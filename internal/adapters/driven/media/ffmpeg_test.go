package media

import (
	"testing"
)

func TestFrameSequence(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"frame_0001.jpg", 1, false},
		{"frame_0042.jpg", 42, false},
		{"frame_1000.jpg", 1000, false},
		{"frame_abcd.jpg", 0, true},
		{"thumbnail.jpg", 0, true},
	}
	for _, tt := range tests {
		got, err := frameSequence(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("frameSequence(%q) expected error, got %d", tt.name, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("frameSequence(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("frameSequence(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"", ""},
		{"single line", "single line"},
		{"first\nsecond\nthird", "third"},
		{"error detail\n\n  \n", "error detail"},
	}
	for _, tt := range tests {
		if got := lastLine(tt.output); got != tt.want {
			t.Errorf("lastLine(%q) = %q, want %q", tt.output, got, tt.want)
		}
	}
}
