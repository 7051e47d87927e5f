package textutil

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{" Laptop ", "laptop"},
		{"GEMC-5116877", "gemc-5116877"},
		{"ＡＢＣ-1", "abc-1"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeaders(t *testing.T) {
	tests := []struct {
		in         string
		normalized string
		cleaned    string
	}{
		{" Contract ID ", "contract_id", "contract_id"},
		{"Ordered Quantity", "ordered_quantity", "ordered_quantity"},
		{"MSME Reg. No", "msme_reg._no", "msme_reg_no"},
		{"Contact No (Phone)", "contact_no_(phone)", "contact_no_phone"},
	}
	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.normalized {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.normalized)
		}
		if got := CleanHeader(tt.in); got != tt.cleaned {
			t.Errorf("CleanHeader(%q) = %q, want %q", tt.in, got, tt.cleaned)
		}
	}
}

func TestSplitList(t *testing.T) {
	set := SplitList(" HP, Dell ,,dell, ")
	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %v", set)
	}
	for _, key := range []string{"hp", "dell"} {
		if _, ok := set[key]; !ok {
			t.Fatalf("missing %q in %v", key, set)
		}
	}
	if len(SplitList("")) != 0 {
		t.Fatal("empty list should produce empty set")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		" a/b:c?.xlsx ":  "a-b-c.xlsx",
		"..hidden.xlsx":  "hidden.xlsx",
		"tab\tname.xlsx": "tabname.xlsx",
		"q<1>|2.xlsx":    "q12.xlsx",
		"   ":            "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
