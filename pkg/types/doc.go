// Package types defines the entity types, snapshot format, configuration,
// and standard error types for the Canvas site composition engine.
//
// A site is a tree: Site -> Row -> Column -> Element. Entities reference
// their parent by ID (SiteID, RowID, ColID) rather than nesting, so a whole
// site travels as one flat Snapshot.
package types
