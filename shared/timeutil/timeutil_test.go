package timeutil

import "testing"

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"7d", 7 * Day},
		{"2h30m", 2*Hour + 30*Minute},
		{"1y", Year},
		{"2mo", 2 * Month},
		{"1w2d", Week + 2*Day},
		{"45s", 45 * Second},
		{"1d12h", Day + 12*Hour},
		{"permanent", Permanent},
		{"perm", Permanent},
		{"PERM", Permanent},
		{"", Permanent},
		{"banana", Permanent},
		{"0s", Permanent},
		{"-5d", Permanent},
	}
	for _, tt := range tests {
		if got := ParseDuration(tt.input); got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseDurationCaseInsensitive(t *testing.T) {
	if got := ParseDuration("7D12H"); got != 7*Day+12*Hour {
		t.Fatalf("ParseDuration(7D12H) = %d", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{-1, "Permanent"},
		{0, "Instant"},
		{500, "Less than a second"},
		{Second, "1 second"},
		{90 * Second, "1 minute, 30 seconds"},
		{Day + 12*Hour, "1 day, 12 hours"},
		{2 * Week, "2 weeks"},
		{Year + Month, "1 year, 1 month"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.input); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{-1, "Perm"},
		{0, "0s"},
		{7*Day + 12*Hour, "7d 12h"},
		{90 * Second, "1m 30s"},
		{3 * Hour, "3h"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.input); got != tt.want {
			t.Errorf("FormatDurationShort(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(-1); got != "Never" {
		t.Fatalf("FormatDate(-1) = %q", got)
	}
	if got := FormatDate(0); got == "" || got == "Never" {
		t.Fatalf("FormatDate(0) = %q", got)
	}
}

// Parse and format need not round-trip exactly, but parsing formatted short
// output of a whole number of days must preserve the value.
func TestShortFormatParsesBack(t *testing.T) {
	d := 7 * Day
	if got := ParseDuration("7d"); got != d {
		t.Fatalf("ParseDuration(7d) = %d, want %d", got, d)
	}
	if got := FormatDurationShort(d); got != "7d" {
		t.Fatalf("FormatDurationShort(%d) = %q", d, got)
	}
}
