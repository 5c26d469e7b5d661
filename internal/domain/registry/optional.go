package registry

// OptionalLink is the three-state "entity link" parameter for Update:
// left alone, explicitly cleared, or set to a new entity key. The zero value
// keeps the existing link.
type OptionalLink struct {
	set   bool
	value string
}

// KeepLink leaves the current link unchanged.
func KeepLink() OptionalLink { return OptionalLink{} }

// Unlink clears the link, leaving the device unlinked.
func Unlink() OptionalLink { return OptionalLink{set: true} }

// LinkTo sets the link to the given entity key.
func LinkTo(entityKey string) OptionalLink {
	return OptionalLink{set: true, value: entityKey}
}

// Set reports whether the caller provided a value (including explicit clear).
func (o OptionalLink) Set() bool { return o.set }

// Value returns the entity key; empty means unlink.
func (o OptionalLink) Value() string { return o.value }
