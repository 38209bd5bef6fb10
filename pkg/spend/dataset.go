package spend

import "fmt"

// Dataset kinds. Series datasets feed the time-series charts; creative
// datasets feed the top-3 galleries and carry a creative link per row.
const (
	KindSeries    = "series"
	KindCreatives = "creatives"
)

// DatasetSpec configures one CSV resource: where it lives and which columns
// carry the dimension, the spend value, and (for creative datasets) the link.
// Every chart in the product is an instance of the same pipeline run with a
// different spec.
type DatasetSpec struct {
	ID               string   `yaml:"id"`
	Description      string   `yaml:"description"`
	Path             string   `yaml:"path"`
	Kind             string   `yaml:"kind"`
	DimensionColumns []string `yaml:"dimension_columns"`
	ValueColumn      string   `yaml:"value_column"`
	LinkColumn       string   `yaml:"link_column,omitempty"`
}

// NeedsLink reports whether rows without a usable creative link are dropped.
func (s DatasetSpec) NeedsLink() bool {
	return s.Kind == KindCreatives
}

// Validate checks that the spec is complete enough to run the pipeline.
func (s DatasetSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("dataset spec: missing id")
	}
	if s.Path == "" {
		return fmt.Errorf("dataset %s: missing path", s.ID)
	}
	if s.Kind != KindSeries && s.Kind != KindCreatives {
		return fmt.Errorf("dataset %s: unknown kind %q", s.ID, s.Kind)
	}
	if len(s.DimensionColumns) == 0 {
		return fmt.Errorf("dataset %s: missing dimension_columns", s.ID)
	}
	if s.ValueColumn == "" {
		return fmt.Errorf("dataset %s: missing value_column", s.ID)
	}
	if s.NeedsLink() && s.LinkColumn == "" {
		return fmt.Errorf("dataset %s: creative datasets need link_column", s.ID)
	}
	return nil
}

// DefaultSpecs returns the built-in dataset catalog: five dimensions, each
// with a monthly spend series and a top-creatives feed.
func DefaultSpecs() []DatasetSpec {
	return []DatasetSpec{
		{
			ID:               "brand-series",
			Description:      "Monthly spend by brand leaf",
			Path:             "capital_one_brand_leaf.csv",
			Kind:             KindSeries,
			DimensionColumns: []string{"Brand (Leaf)", "Brand_Leaf"},
			ValueColumn:      "Spend_USD",
		},
		{
			ID:               "device-series",
			Description:      "Monthly spend by device",
			Path:             "capital_one_device.csv",
			Kind:             KindSeries,
			DimensionColumns: []string{"Device"},
			ValueColumn:      "Spend_USD",
		},
		{
			ID:               "publisher-series",
			Description:      "Monthly spend by publisher",
			Path:             "capital_one_publisher.csv",
			Kind:             KindSeries,
			DimensionColumns: []string{"Publisher"},
			ValueColumn:      "Spend_USD",
		},
		{
			ID:               "category-series",
			Description:      "Monthly spend by product category",
			Path:             "capital_one_category.csv",
			Kind:             KindSeries,
			DimensionColumns: []string{"Category_Level_8"},
			ValueColumn:      "Spend_USD",
		},
		{
			ID:               "audience-series",
			Description:      "Monthly spend by audience segment",
			Path:             "capital_one_audience_category.csv",
			Kind:             KindSeries,
			DimensionColumns: []string{"audience_macro"},
			ValueColumn:      "Spend_USD",
		},
		{
			ID:               "brand-creatives",
			Description:      "Top creatives by brand leaf",
			Path:             "top3_by_brand_leaf.csv",
			Kind:             KindCreatives,
			DimensionColumns: []string{"Brand (Leaf)", "Brand_Leaf"},
			ValueColumn:      "Spend_USD",
			LinkColumn:       "Link_to_Creative",
		},
		{
			ID:               "device-creatives",
			Description:      "Top creatives by device",
			Path:             "top3_by_device.csv",
			Kind:             KindCreatives,
			DimensionColumns: []string{"Device"},
			ValueColumn:      "Spend_USD",
			LinkColumn:       "Link_to_Creative",
		},
		{
			ID:               "publisher-creatives",
			Description:      "Top creatives by publisher",
			Path:             "top3_by_publisher.csv",
			Kind:             KindCreatives,
			DimensionColumns: []string{"Publisher"},
			ValueColumn:      "Spend_USD",
			LinkColumn:       "Link_to_Creative",
		},
		{
			ID:               "category-creatives",
			Description:      "Top creatives by product category",
			Path:             "top3_by_category.csv",
			Kind:             KindCreatives,
			DimensionColumns: []string{"Category_Level_8"},
			ValueColumn:      "Spend_USD",
			LinkColumn:       "Link_to_Creative",
		},
		{
			ID:               "audience-creatives",
			Description:      "Top creatives by audience segment",
			Path:             "top3_by_audience_macro.csv",
			Kind:             KindCreatives,
			DimensionColumns: []string{"audience_macro"},
			ValueColumn:      "Spend_USD",
			LinkColumn:       "Link_to_Creative",
		},
	}
}
