package at_test

import (
	"testing"

	"github.com/simcom-go/modem/at"
)

func TestFieldsCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"5", 1},
		{"5,120", 2},
		{"5,120,", 3},
		{",,", 3},
	}
	for _, tt := range tests {
		f := at.Fields(tt.in)
		if got := f.Count(); got != tt.want {
			t.Errorf("Fields(%q).Count() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFieldsNum(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantOK  bool
		wantLen int
	}{
		{"5,120", 5, true, 3},
		{"120", 120, true, 0},
		{"-3,1", -3, true, 1},
		{"+3,1", 3, true, 1},
		{"", 0, false, 0},
		{"x,1", 0, false, 1},
		{"5x,1", 5, false, 1},
	}
	for _, tt := range tests {
		f := at.Fields(tt.in)
		got, ok := f.Num(10)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Fields(%q).Num(10) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			continue
		}
		if len(f) != tt.wantLen {
			t.Errorf("Fields(%q).Num(10) left cursor %q (len %d), want len %d", tt.in, string(f), len(f), tt.wantLen)
		}
	}
}

func TestFieldsHex(t *testing.T) {
	f := at.Fields("1a,rest")
	got, ok := f.Hex()
	if !ok || got != 0x1a {
		t.Fatalf("Hex() = (%d, %v), want (26, true)", got, ok)
	}
	if string(f) != "rest" {
		t.Fatalf("cursor after Hex() = %q, want %q", string(f), "rest")
	}
}

func TestFieldsFnv(t *testing.T) {
	f := at.Fields("DATA,rest")
	got := f.Fnv()
	want := at.HashString("DATA")
	if got != want {
		t.Fatalf("Fnv() = %d, want %d", got, want)
	}
	if string(f) != "rest" {
		t.Fatalf("cursor after Fnv() = %q, want %q", string(f), "rest")
	}
}

func TestFieldsRaw(t *testing.T) {
	f := at.Fields("abc")
	if string(f.Raw()) != "abc" {
		t.Fatalf("Raw() = %q, want %q", string(f.Raw()), "abc")
	}
}
