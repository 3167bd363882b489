package pdf

import "testing"

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"D:20240102030405Z", "2024-01-02T03:04:05Z"},
		{"D:20240102030405+09'00'", "2024-01-02T03:04:05+09:00"},
		{"D:20240102030405-05'30", "2024-01-02T03:04:05-05:30"},
		{"D:20240102", "2024-01-02T00:00:00Z"},
		{"D:2024", "2024-01-01T00:00:00Z"},
		{"20240102030405", "2024-01-02T03:04:05Z"},
		{"yesterday", "yesterday"},
		{"D:20241340", "D:20241340"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := normalizeDate(tt.in); got != tt.want {
				t.Fatalf("normalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
