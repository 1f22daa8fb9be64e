package crm

import (
	"testing"

	"funktaxi/internal/domain"
)

func directory() []domain.Customer {
	return []domain.Customer{
		{ID: "c1", Name: "Hans Müller", Phone: "038378 22334"},
		{ID: "c2", Name: "Anna Müller", Mobile: "+49 171 2345678"},
		{ID: "c3", Name: "Peter Schmidt", Phone: "+49 38378 445566"},
		{ID: "c4", Name: "Müller", Phone: ""},
		{ID: "c5", Name: "Karin Meyer", Mobile: "0171 9876543"},
		{ID: "c6", Name: "H. Müller-Lüdenscheidt", Phone: ""},
	}
}

func TestSearchByNameExactFirst(t *testing.T) {
	results := SearchByName(directory(), "Müller")
	if len(results) == 0 {
		t.Fatal("expected matches")
	}
	if results[0].ID != "c4" {
		t.Errorf("first result = %s, want exact match c4", results[0].ID)
	}
}

func TestSearchByNameSubstring(t *testing.T) {
	results := SearchByName(directory(), "schmidt")
	if len(results) != 1 || results[0].ID != "c3" {
		t.Fatalf("results = %v, want only c3", ids(results))
	}
}

func TestSearchByNameLastName(t *testing.T) {
	// "Hans Müller" should be found via last-name pass even when the
	// search carries a different first name.
	results := SearchByName(directory(), "Herr Müller")
	found := false
	for _, c := range results {
		if c.ID == "c1" {
			found = true
		}
	}
	if !found {
		t.Errorf("results = %v, want c1 included", ids(results))
	}
}

func TestSearchByNameNoDuplicates(t *testing.T) {
	results := SearchByName(directory(), "Müller")
	seen := make(map[string]bool)
	for _, c := range results {
		if seen[c.ID] {
			t.Fatalf("duplicate result %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestSearchByNameMaxFive(t *testing.T) {
	var many []domain.Customer
	for i := 0; i < 10; i++ {
		many = append(many, domain.Customer{ID: string(rune('a' + i)), Name: "Schulz"})
	}
	if got := len(SearchByName(many, "Schulz")); got != MaxMatches {
		t.Errorf("len = %d, want %d", got, MaxMatches)
	}
}

func TestSearchByNameEmpty(t *testing.T) {
	if got := SearchByName(directory(), "  "); got != nil {
		t.Errorf("blank search = %v, want nil", ids(got))
	}
}

func TestFindByPhone(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		wantID string
		wantOK bool
	}{
		{"international form matches national entry", "+49 38378 22334", "c1", true},
		{"national form matches mobile entry", "0171 2345678", "c2", true},
		{"short number never matches", "22334", "", false},
		{"unknown number", "+49 30 11112222", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := FindByPhone(directory(), tt.phone)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && c.ID != tt.wantID {
				t.Errorf("customer = %s, want %s", c.ID, tt.wantID)
			}
		})
	}
}

func TestNormalizeContactPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0049 171 2345678", "+491712345678"},
		{"0171 2345678", "+491712345678"},
		{"+49 171 2345678", "+491712345678"},
		{"1712345678", "+491712345678"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeContactPhone(tt.in); got != tt.want {
			t.Errorf("NormalizeContactPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func ids(cs []domain.Customer) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
