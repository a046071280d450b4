// Package store implements veloxd's item storage engine: a hash index with
// reference-counted items, lazy expiration, a flush_all watermark, a
// delete-lock window for deferred deletes, and an optional managed-mode
// bucket-generation table. It is the storage collaborator spec.md treats
// as out of scope but narrows to the interface in spec.md 9; this repo
// implements that collaborator in full since no separate project supplies
// it.
package store

var (
	_ Store = (*Locked)(nil)
	_ Store = (*Sharded)(nil)
)
