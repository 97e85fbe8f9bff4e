// Package elements is the catalog of element types: their default property
// records, how overrides merge over those defaults, and the typed property
// structs renderers consume.
//
// Effective properties are always computed, never stored:
//
//	effective := Resolve(type, element.Props)
//
// Defaults are templates. Every value handed out by this package is a deep
// copy, so callers may modify results freely.
package elements
