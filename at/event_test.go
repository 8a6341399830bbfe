package at_test

import (
	"testing"

	"github.com/simcom-go/modem/at"
)

func TestHashChannelPrefixFolding(t *testing.T) {
	// "0, CONNECT OK" must hash identically to "CONNECT OK": the leading
	// channel number is all-digit up to the comma, so it is discarded
	// and the hash restarts (spec.md §4.2 rule 1).
	withPrefix, _ := at.Hash([]byte("0, CONNECT OK"))
	bare, _ := at.Hash([]byte("CONNECT OK"))
	if withPrefix != bare {
		t.Fatalf("channel-prefixed hash %d != bare hash %d", withPrefix, bare)
	}

	withPrefix2, _ := at.Hash([]byte("1,CONNECT OK"))
	if withPrefix2 != bare {
		t.Fatalf("channel-prefixed hash without space %d != bare hash %d", withPrefix2, bare)
	}
}

func TestHashCommaDisambiguation(t *testing.T) {
	// "+RECEIVE," must NOT fold to "+RECEIVE": the prefix before the
	// comma is not all-digit, so the comma is included in the hash
	// and scanning stops (spec.md §4.2 rule 2).
	receive, fields := at.Hash([]byte("+RECEIVE"))
	receiveComma, fields2 := at.Hash([]byte("+RECEIVE,5,120"))

	if receive == receiveComma {
		t.Fatalf("+RECEIVE and +RECEIVE, must hash differently, got %d for both", receive)
	}
	if len(fields) != 0 {
		t.Fatalf("bare +RECEIVE should leave no field region, got %q", fields)
	}
	if string(fields2) != "5,120" {
		t.Fatalf("expected field region %q, got %q", "5,120", fields2)
	}
}

func TestHashColonStopsAndSkipsSpace(t *testing.T) {
	hash, fields := at.Hash([]byte("+CREG: 0,1"))
	expect := at.HashString("+CREG")
	if hash != expect {
		t.Fatalf("expected hash %d for +CREG, got %d", expect, hash)
	}
	if string(fields) != "0,1" {
		t.Fatalf("expected field region %q, got %q", "0,1", fields)
	}
}

func TestHashNoFieldRegion(t *testing.T) {
	hash, fields := at.Hash([]byte("OK"))
	if hash != at.HashOK {
		t.Fatalf("expected HashOK, got %d", hash)
	}
	if len(fields) != 0 {
		t.Fatalf("expected no field region for OK, got %q", fields)
	}
}

func TestClassifyHash(t *testing.T) {
	tests := []struct {
		name string
		hash at.EventID
		want at.ResponseType
	}{
		{"OK", at.HashOK, at.TypeFinal},
		{"ERROR", at.HashError, at.TypeFinal},
		{"+CME ERROR", at.HashCmeError, at.TypeFinal},
		{"+CMS ERROR", at.HashCmsError, at.TypeFinal},
		{"+CREG", at.HashString("+CREG"), at.TypeEvent},
		{"CONNECT OK", at.HashString("CONNECT OK"), at.TypeEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := at.ClassifyHash(tt.hash); got != tt.want {
				t.Errorf("ClassifyHash(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
