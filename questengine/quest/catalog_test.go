package quest

import "testing"

func TestCatalog_Get(t *testing.T) {
	catalog := DefaultCatalog()

	tmpl, ok := catalog.Get("q_deep_focus")
	if !ok {
		t.Fatal("Get(q_deep_focus) not found")
	}
	if tmpl.Target != 2 {
		t.Errorf("tmpl.Target = %d, want 2", tmpl.Target)
	}

	if _, ok := catalog.Get("q_missing"); ok {
		t.Error("Get(q_missing) found a template")
	}
}

func TestCatalog_Search(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name    string
		query   string
		wantID  string
		wantHit bool
	}{
		{name: "exact word", query: "focus", wantID: "q_deep_focus", wantHit: true},
		{name: "fuzzy subsequence", query: "upvt", wantID: "q_upvoter", wantHit: true},
		{name: "no match", query: "zzzzzz", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := catalog.Search(tt.query)
			if !tt.wantHit {
				if len(results) != 0 {
					t.Errorf("Search(%q) returned %d results, want 0", tt.query, len(results))
				}
				return
			}
			if len(results) == 0 {
				t.Fatalf("Search(%q) returned no results", tt.query)
			}
			if results[0].ID != tt.wantID {
				t.Errorf("Search(%q)[0].ID = %q, want %q", tt.query, results[0].ID, tt.wantID)
			}
		})
	}
}

func TestCatalog_TemplatesReturnsCopy(t *testing.T) {
	catalog := DefaultCatalog()

	templates := catalog.Templates()
	templates[0].RewardPoints = 9999

	fresh := catalog.Templates()
	if fresh[0].RewardPoints == 9999 {
		t.Error("Templates() exposes the catalog's backing slice")
	}
}
