package dircd

import "sync"

// ExtensionSlot is a typed, named attachment point that lets a
// capability or services integration stash per-object state without
// growing User/Channel/Membership themselves. It's a thin, type-safe
// wrapper around the untyped extensions map those types already carry.
type ExtensionSlot[T any] struct {
	name string
}

// NewExtensionSlot declares a new slot under the given name. Two slots
// sharing a name collide, so callers should namespace by owning
// extension, eg "services/account-expiry".
func NewExtensionSlot[T any](name string) ExtensionSlot[T] {
	return ExtensionSlot[T]{name: name}
}

// Extensible is implemented by every type that carries an extension
// slot map: User, Channel, and Membership.
type Extensible interface {
	Extension(key string) (any, bool)
	SetExtension(key string, value any)
}

// Get retrieves the slot's value from an Extensible, reporting whether
// it had been set and was of the expected type.
func (s ExtensionSlot[T]) Get(obj Extensible) (T, bool) {
	var zero T
	v, ok := obj.Extension(s.name)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Set stores a value in the slot on an Extensible.
func (s ExtensionSlot[T]) Set(obj Extensible, value T) {
	obj.SetExtension(s.name, value)
}

// channelExtensions and membershipExtensions back the Extensible
// implementation for Channel and Membership (User already has its own
// extensions map declared alongside its other fields).
type extensionBag struct {
	mu   sync.RWMutex
	data map[string]any
}

func (b *extensionBag) Extension(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

func (b *extensionBag) SetExtension(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string]any)
	}
	b.data[key] = value
}
