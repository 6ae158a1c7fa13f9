// Package registrar turns heterogeneous source records into capabilities.
//
// A record is a kind plus a set of raw fields: a tool definition, a
// knowledge-source descriptor, database table metadata or a conversation fact.
// The registrar decodes the fields into the kind's descriptor, derives a
// deterministic id from the kind's natural key (unless the record supplies
// one), vectorizes the result and upserts it into the capability store.
//
// Registration is an idempotent upsert keyed by id. RegisterMany runs records
// on a bounded worker pool and reports one Result per record in input order;
// a failing record never aborts the others.
package registrar
