package storage

// DocumentStore loads and saves whole structured documents. Each named
// document is replaced wholesale on save; callers serialize access through
// the lock of the store that owns the in-memory mirror.
type DocumentStore interface {
	// Load reads the named document into v. A missing document returns
	// ErrNotExist so callers can bootstrap defaults.
	Load(name string, v any) error

	// Save replaces the named document with the serialization of v.
	Save(name string, v any) error
}
