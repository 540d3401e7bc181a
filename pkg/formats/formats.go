// Package formats decodes IFC documents stored as ISO-10303-21 (STEP) text,
// either plain or wrapped in zip, gzip, zstd or lz4 containers.
//
// Decoding produces a Document: the header, every instance record keyed by
// its express ID, and diagnostics for the records that were kept in degraded
// form. Geometry is not interpreted here.
package formats
