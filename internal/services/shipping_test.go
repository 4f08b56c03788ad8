package services

import (
	"strings"
	"testing"
)

func TestNormalizeCourier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"CJ대한통운", CourierCJ},
		{"cj 대한통운", CourierCJ},
		{"대한통운", CourierCJ},
		{"한진택배", CourierHanjin},
		{" 한진 ", CourierHanjin},
		{"롯데글로벌로지스", CourierLotte},
		{"우체국택배", CourierPost},
		{"로젠", CourierLogen},
		{"동네택배", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCourier(tt.input); got != tt.want {
			t.Errorf("NormalizeCourier(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestResolveCourierName(t *testing.T) {
	t.Parallel()

	if got := ResolveCourierName("cj대한통운"); got != "CJ대한통운" {
		t.Errorf("ResolveCourierName(cj대한통운) = %q", got)
	}
	// Unknown carriers pass through untouched.
	if got := ResolveCourierName("퀵서비스"); got != "퀵서비스" {
		t.Errorf("ResolveCourierName(퀵서비스) = %q", got)
	}
	if got := ResolveCourierName("  "); got != "" {
		t.Errorf("ResolveCourierName(blank) = %q", got)
	}
}

func TestBuildTrackingURL(t *testing.T) {
	t.Parallel()

	url := BuildTrackingURL("CJ대한통운", "1234567890")
	if !strings.Contains(url, "cjlogistics.com") || !strings.Contains(url, "1234567890") {
		t.Errorf("unexpected CJ url: %q", url)
	}
	if got := BuildTrackingURL("동네택배", "123"); got != "" {
		t.Errorf("unknown carrier url = %q, want empty", got)
	}
	if got := BuildTrackingURL("한진택배", "  "); got != "" {
		t.Errorf("blank tracking number url = %q, want empty", got)
	}
}
