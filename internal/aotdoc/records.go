package aotdoc

import "github.com/aotgraph/aotgraph/internal/diag"

// RawClass is a class declaration as read from an export document, before
// identifier assignment or linking.
type RawClass struct {
	Name    string
	Model   string
	Package string
	Layer   string
	Extends string
	Methods []RawMethod
}

// RawMethod is a method declaration with its unparsed body text.
type RawMethod struct {
	Name   string
	Access string
	Static bool
	Source string
}

// RawTable is a table declaration.
type RawTable struct {
	Name    string
	Model   string
	Package string
	Layer   string
	Fields  []RawField
}

// RawField is a table field declaration.
type RawField struct {
	Name             string
	Type             string
	ExtendedDataType string
}

// Document holds everything parsed from one export document. Records that
// were too malformed to interpret are absent and accounted for in
// Diagnostics.
type Document struct {
	Path        string
	Model       string // bundle-level model override, if known
	Classes     []RawClass
	Tables      []RawTable
	Diagnostics []diag.Diagnostic
}
