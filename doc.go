/*
Package objstore implements an embedded object store keyed by class identity,
on top of a key-value backend (Bolt by default; an in-memory backend and a
SQLite backend are also available).

The API is untyped: every operation takes the reflect.Type of a registered
struct. Package typed wraps it with generic, compile-time typed accessors.

We implement:

1. Classes, registered struct types stored in their own bucket. A class may
declare one primary key field with the `objstore:"pk"` tag.

2. Sessions, handles that own at most one writable transaction. Reads outside
a transaction run in a short read-only snapshot.

3. Live objects. Rows created or read inside a writable transaction are
pointers managed by that transaction; edits made to them are written back on
commit.

# Technical Details

**Buckets.**
One bucket per class, named after the class, plus a `_meta` bucket holding a
fingerprint of each class layout.

**Keys.**
Keyless classes use an 8-byte big-endian per-bucket sequence, so they iterate
in creation order. Keyed classes use an order-preserving encoding of the key:
integers are big-endian (signed ones with the sign bit flipped), strings are
prefixed with a marker byte, UUIDs are stored raw.

**Values.**
msgpack of the row struct.

**Errors.**
Failures are classified as ErrState, ErrConstraint, ErrValue or ErrStore and
are matched with errors.Is.
*/
package objstore
