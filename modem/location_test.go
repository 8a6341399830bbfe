package modem

import "testing"

func TestParseLocationIntDropsDecimalPoint(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"31.123456", 31123456},
		{"-31.123456", -31123456},
		{"0", 0},
		{" 12", 12},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseLocationInt(tt.in); got != tt.want {
			t.Errorf("parseLocationInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseLocationFieldsSplitsCommaFields(t *testing.T) {
	code, lat, lon, ok := parseLocationFields("0,31.123456,121.654321,50")
	if !ok {
		t.Fatal("expected ok=true for a well-formed response")
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
	if lat != 31123456 {
		t.Errorf("lat = %d, want 31123456", lat)
	}
	if lon != 121654321 {
		t.Errorf("lon = %d, want 121654321", lon)
	}
}

func TestParseLocationFieldsRejectsTooFewFields(t *testing.T) {
	_, _, _, ok := parseLocationFields("0,31.1")
	if ok {
		t.Error("expected ok=false when fewer than 3 fields are present")
	}
}

func TestGetLocationNoopOnSIM7600(t *testing.T) {
	v := &simcomVendor{m: &Modem{}, model: ModelSIM7600}
	v.getLocation(nil) // must return immediately without touching v.m.AT
	if v.m.location != (Location{}) {
		t.Error("getLocation should be a no-op on SIM7600")
	}
}
