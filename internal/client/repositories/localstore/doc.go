// Package localstore implements the client's "local storage": a small
// key/value table in the local SQLite database. The cart, the bearer token
// and the user id live here (see KeyCart, KeyToken, KeyUser).
//
// SQLiteRepository works on a dbx.DBTX, so it can be bound either to the
// database or to a transaction opened with dbx.WithTx.
package localstore
