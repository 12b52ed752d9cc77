package events

import "testing"

func TestRegion(t *testing.T) {
	tests := []struct {
		name    string
		report  Report
		article Article
		want    string
	}{
		{"first entity wins", Report{GeographicEntities: []string{" Ukraine ", "Russia"}}, Article{Country: "poland"}, "ukraine"},
		{"falls back to country", Report{}, Article{Country: "Asia"}, "asia"},
		{"blank first entity falls back", Report{GeographicEntities: []string{"  ", "Russia"}}, Article{Country: "Poland"}, "poland"},
		{"no region", Report{}, Article{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Region(tt.report, tt.article); got != tt.want {
				t.Errorf("Region() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArticle_Fingerprint(t *testing.T) {
	a := Article{Title: "Missile attack", URL: "https://example.com/a"}
	first := a.Fingerprint()
	if first == "" || len(first) != 32 {
		t.Fatalf("Fingerprint() = %q, want 32 hex chars", first)
	}
	if again := a.Fingerprint(); again != first {
		t.Errorf("Fingerprint() not stable: %q != %q", again, first)
	}

	other := Article{Title: "Missile attack", URL: "https://example.com/b"}
	if other.Fingerprint() == first {
		t.Error("different urls produced the same fingerprint")
	}

	a.ContentFingerprint = "abc"
	if got := a.Fingerprint(); got != "abc" {
		t.Errorf("Fingerprint() = %q, want explicit fingerprint abc", got)
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		in    string
		want  Severity
		ok    bool
		rank  int
		label string
		color string
	}{
		{"CRITICAL", SeverityCritical, true, 4, "CRITICAL", "danger"},
		{"high", SeverityHigh, true, 3, "HIGH", "warning"},
		{" Medium ", SeverityMedium, true, 2, "MEDIUM", "warning"},
		{"low", SeverityLow, true, 1, "LOW", "good"},
		{"severe", "", false, 0, "UNSPECIFIED", "good"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSeverity(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
			if got.Rank() != tt.rank {
				t.Errorf("Rank() = %d, want %d", got.Rank(), tt.rank)
			}
			if got.Label() != tt.label {
				t.Errorf("Label() = %q, want %q", got.Label(), tt.label)
			}
			if got.Color() != tt.color {
				t.Errorf("Color() = %q, want %q", got.Color(), tt.color)
			}
		})
	}
}
