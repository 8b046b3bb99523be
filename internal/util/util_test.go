package util

import (
	"net"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"poster.png", "poster.png", false},
		{"../../etc/passwd", "passwd", false},
		{`C:\Users\me\clip.mp4`, "clip.mp4", false},
		{"bad\x00name.jpg", "badname.jpg", false},
		{"..", "", true},
		{"", "", true},
		{"/", "", true},
	}

	for _, tt := range tests {
		got, err := SanitizeFilename(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SanitizeFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
	if !IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) should be true")
	}
}

func TestParseIP(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"81.2.69.142", "81.2.69.142"},
		{"81.2.69.142:54321", "81.2.69.142"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{" 2001:db8::1 ", "2001:db8::1"},
	}

	for _, tt := range tests {
		got := ParseIP(tt.input)
		if got == nil || got.String() != tt.want {
			t.Errorf("ParseIP(%q) = %v, want %s", tt.input, got, tt.want)
		}
	}
	if ParseIP("not-an-ip") != nil {
		t.Error("ParseIP should return nil for garbage")
	}
}
