package types

// Snapshot is the serializable form of one site's schema: flat arrays with
// parent references. Loaders produce it and persistence layers store it.
type Snapshot struct {
	Site     Site      `json:"site" yaml:"site"`
	Rows     []Row     `json:"rows" yaml:"rows"`
	Columns  []Column  `json:"columns" yaml:"columns"`
	Elements []Element `json:"elements" yaml:"elements"`
}
