// Package ir provides the constant value representation shared by the
// chainql packages.
//
// Values appear in three places:
//   - literals inside query function bodies (expr.Constant)
//   - constant collections used as query sources
//   - rows read back from a store after executing a compiled query
//
// IRValue is a sealed interface with no float variant, so canonical
// encodings are stable across platforms.
//
// MarshalCanonical produces RFC 8785 style JSON (UTF-16 key order, NFC
// strings, no HTML escaping). Fingerprint hashes a canonical document with
// a domain prefix and is used to identify query models and stored plans.
package ir
