package modem

import "testing"

func TestClassifyMessageGSM7(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		parts   int
		encoded Encoding
	}{
		{"empty", "", 1, EncodingGSM7},
		{"short ascii", "Hello World", 1, EncodingGSM7},
		{"exactly one segment", repeatRune('a', gsm7SingleSegment), 1, EncodingGSM7},
		{"one over single segment", repeatRune('a', gsm7SingleSegment+1), 2, EncodingGSM7},
		{"extension char costs two septets", "a^a", 1, EncodingGSM7},
		{"accented basic alphabet char", "café", 1, EncodingGSM7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, parts := classifyMessage(tt.text)
			if enc != tt.encoded {
				t.Errorf("encoding = %v, want %v", enc, tt.encoded)
			}
			if parts != tt.parts {
				t.Errorf("parts = %d, want %d", parts, tt.parts)
			}
		})
	}
}

func TestClassifyMessageUCS2(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		parts int
	}{
		{"single CJK char", "こ", 1},
		{"emoji forces ucs2", "hi 👋", 1},
		{"exactly one segment", repeatRune('こ', ucs2SingleSegment), 1},
		{"one over single segment", repeatRune('こ', ucs2SingleSegment+1), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, parts := classifyMessage(tt.text)
			if enc != EncodingUCS2 {
				t.Errorf("encoding = %v, want ucs2", enc)
			}
			if parts != tt.parts {
				t.Errorf("parts = %d, want %d", parts, tt.parts)
			}
		})
	}
}

func TestEncodingString(t *testing.T) {
	if got := EncodingGSM7.String(); got != "gsm7" {
		t.Errorf("EncodingGSM7.String() = %q, want gsm7", got)
	}
	if got := EncodingUCS2.String(); got != "ucs2" {
		t.Errorf("EncodingUCS2.String() = %q, want ucs2", got)
	}
}

func repeatRune(r rune, n int) string {
	rs := make([]rune, n)
	for i := range rs {
		rs[i] = r
	}
	return string(rs)
}
