package domain

import "strings"

// ContentKey pairs a key identifier with its decryption key, both hex
// encoded. Produced by the DRM session for one protection header.
type ContentKey struct {
	KID string `json:"kid"`
	Key string `json:"key"`
}

// Usable reports whether the key carries an actual key value.
func (k ContentKey) Usable() bool {
	return k.Key != ""
}

// Keyring holds the content keys returned for one title.
type Keyring []ContentKey

// Usable reports whether any key in the ring carries a key value. A title
// whose keyring is not usable is treated as unencrypted for the run.
func (r Keyring) Usable() bool {
	for _, k := range r {
		if k.Usable() {
			return true
		}
	}
	return false
}

// First returns the first usable key. Historically the whole title was
// decrypted with this one key; ForKID supersedes it for multi-key titles.
func (r Keyring) First() (ContentKey, bool) {
	for _, k := range r {
		if k.Usable() {
			return k, true
		}
	}
	return ContentKey{}, false
}

// ForKID returns the key matching the given key ID, falling back to the
// first usable key when no KID matches or kid is empty. The fallback keeps
// single-key titles behaving exactly as before.
func (r Keyring) ForKID(kid string) (ContentKey, bool) {
	if kid != "" {
		want := normalizeKID(kid)
		for _, k := range r {
			if k.Usable() && normalizeKID(k.KID) == want {
				return k, true
			}
		}
	}
	return r.First()
}

func normalizeKID(kid string) string {
	return strings.ToLower(strings.ReplaceAll(kid, "-", ""))
}
