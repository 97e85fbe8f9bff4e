package types

// Column widths use a 12-unit grid.
const (
	MinColumnWidth = 1
	MaxColumnWidth = 12
)

// Row is a horizontal band of a site. Order is its position among the
// site's rows; lower orders render first.
type Row struct {
	ID     string `json:"id" yaml:"id"`
	SiteID string `json:"siteId" yaml:"site_id"`
	Order  int    `json:"order" yaml:"order"`
}

// Column is a slot inside a row. Width is measured in grid units and must
// lie in [MinColumnWidth, MaxColumnWidth].
type Column struct {
	ID    string `json:"id" yaml:"id"`
	RowID string `json:"rowId" yaml:"row_id"`
	Width int    `json:"width" yaml:"width"`
	Order int    `json:"order" yaml:"order"`
}

// ValidWidth reports whether w is a legal column width.
func ValidWidth(w int) bool {
	return w >= MinColumnWidth && w <= MaxColumnWidth
}
