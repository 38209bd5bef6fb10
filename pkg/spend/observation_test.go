package spend

import "testing"

func TestValidMonthKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"2024-01", true},
		{"2024-12", true},
		{"1999-06", true},
		{"2024-13", false},
		{"2024-00", false},
		{"2024-1", false},
		{"2024/01", false},
		{"2024-01-15", false},
		{"January 2024", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidMonthKey(tt.key); got != tt.want {
			t.Errorf("ValidMonthKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	series := DatasetSpec{
		ID:               "brand-series",
		Kind:             KindSeries,
		DimensionColumns: []string{"Brand (Leaf)", "Brand_Leaf"},
		ValueColumn:      "Spend_USD",
	}

	tests := []struct {
		name string
		row  Row
		want Observation
		ok   bool
	}{
		{
			name: "valid row",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03", "Spend_USD": "1200.50"},
			want: Observation{Value: "Venture X", Month: "2024-03", Spend: 1200.50},
			ok:   true,
		},
		{
			name: "alias column",
			row:  Row{"Brand_Leaf": "Quicksilver", "Date": "2024-03", "Spend_USD": "10"},
			want: Observation{Value: "Quicksilver", Month: "2024-03", Spend: 10},
			ok:   true,
		},
		{
			name: "thousands separators",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03", "Spend_USD": "1,200,300"},
			want: Observation{Value: "Venture X", Month: "2024-03", Spend: 1200300},
			ok:   true,
		},
		{
			name: "missing dimension",
			row:  Row{"Date": "2024-03", "Spend_USD": "10"},
			ok:   false,
		},
		{
			name: "blank dimension",
			row:  Row{"Brand (Leaf)": "   ", "Date": "2024-03", "Spend_USD": "10"},
			ok:   false,
		},
		{
			name: "month thirteen",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-13", "Spend_USD": "10"},
			ok:   false,
		},
		{
			name: "wrong date shape",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "03/2024", "Spend_USD": "10"},
			ok:   false,
		},
		{
			name: "zero spend",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03", "Spend_USD": "0"},
			ok:   false,
		},
		{
			name: "negative spend",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03", "Spend_USD": "-500"},
			ok:   false,
		},
		{
			name: "unparseable spend",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03", "Spend_USD": "n/a"},
			ok:   false,
		},
		{
			name: "nan spend",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03", "Spend_USD": "NaN"},
			ok:   false,
		},
		{
			name: "missing spend",
			row:  Row{"Brand (Leaf)": "Venture X", "Date": "2024-03"},
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := series.Normalize(tt.row)
			if ok != tt.ok {
				t.Fatalf("Normalize() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	spec := DatasetSpec{
		Kind:             KindSeries,
		DimensionColumns: []string{"Device"},
		ValueColumn:      "Spend_USD",
	}
	row := Row{"Device": " Mobile ", "Date": "2024-05", "Spend_USD": "3,000"}

	first, ok1 := spec.Normalize(row)
	second, ok2 := spec.Normalize(row)
	if !ok1 || !ok2 {
		t.Fatalf("Normalize() ok = %v, %v, want true, true", ok1, ok2)
	}
	if first != second {
		t.Errorf("Normalize() not stable: %+v vs %+v", first, second)
	}
}

func TestNormalizeCreativeLink(t *testing.T) {
	creatives := DatasetSpec{
		ID:               "brand-creatives",
		Kind:             KindCreatives,
		DimensionColumns: []string{"Brand (Leaf)"},
		ValueColumn:      "Spend_USD",
		LinkColumn:       "Link_to_Creative",
	}

	tests := []struct {
		name     string
		link     string
		wantLink string
		ok       bool
	}{
		{"already https", "https://cdn.example.com/a.png", "https://cdn.example.com/a.png", true},
		{"http preserved", "http://cdn.example.com/a.png", "http://cdn.example.com/a.png", true},
		{"scheme added", "cdn.example.com/a.png", "https://cdn.example.com/a.png", true},
		{"spaces encoded", "cdn.example.com/my ad.png", "https://cdn.example.com/my%20ad.png", true},
		{"surrounding whitespace", "  cdn.example.com/a.png  ", "https://cdn.example.com/a.png", true},
		{"empty link drops row", "", "", false},
		{"whitespace-only link drops row", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Row{
				"Brand (Leaf)":     "Venture X",
				"Date":             "2024-03",
				"Spend_USD":        "10",
				"Link_to_Creative": tt.link,
			}
			got, ok := creatives.Normalize(row)
			if ok != tt.ok {
				t.Fatalf("Normalize() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Link != tt.wantLink {
				t.Errorf("Normalize() link = %q, want %q", got.Link, tt.wantLink)
			}
		})
	}
}
