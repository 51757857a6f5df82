// Package csvlog writes decision records to a CSV file.
//
// The attention-mode column set is a compatibility contract with
// downstream analysis scripts; columns are never reordered and new
// ones go at the end. Writes are buffered and flushed to disk every
// few records, plus a final flush on Close.
package csvlog
