package main

import "testing"

func TestParseMasterList(t *testing.T) {
	got, err := parseMasterList(" B=Biasa, ,TU.040 = Tata Usaha ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0] != (masterEntry{Code: "B", Name: "Biasa"}) {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[1] != (masterEntry{Code: "TU.040", Name: "Tata Usaha"}) {
		t.Fatalf("unexpected second entry: %+v", got[1])
	}

	if _, err := parseMasterList("B"); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := parseMasterList("=Biasa"); err == nil {
		t.Fatalf("expected error for missing code")
	}
	if got, err := parseMasterList(""); err != nil || len(got) != 0 {
		t.Fatalf("empty list: got %v, %v", got, err)
	}
}
