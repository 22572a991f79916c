package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// TxRef identifies a ledger transaction by either its store-local object id
// or an external (bank-provided) id. The distinction is resolved once, at
// the boundary, instead of re-derived at every call site.
type TxRef struct {
	local    primitive.ObjectID
	external string
}

// ParseTxRef interprets raw as a local id when it is a well-formed object
// id, and as an external id otherwise.
func ParseTxRef(raw string) TxRef {
	if id, err := primitive.ObjectIDFromHex(raw); err == nil {
		return TxRef{local: id}
	}

	return TxRef{external: raw}
}

// LocalTxRef builds a TxRef for a known store-local id.
func LocalTxRef(id primitive.ObjectID) TxRef {
	return TxRef{local: id}
}

// IsLocal reports whether the reference is a store-local object id.
func (r TxRef) IsLocal() bool {
	return !r.local.IsZero()
}

// Local returns the store-local id; zero when the reference is external.
func (r TxRef) Local() primitive.ObjectID {
	return r.local
}

// External returns the external id; empty when the reference is local.
func (r TxRef) External() string {
	return r.external
}

// String returns the raw form the reference was parsed from.
func (r TxRef) String() string {
	if r.IsLocal() {
		return r.local.Hex()
	}

	return r.external
}
