// Package state persists option declarations per scope and replays them
// into a configuration context.
//
// Responsibilities:
//   - Store only loads/saves the records of a single Ref.
//   - Loader resolves record names through a Catalog, decodes the values
//     into the option types and declares them, so persisted options go
//     through the same validation as fluent ones.
//   - The core opts package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers.
//
// Data flow:
//
//	Store -> Loader -> opts.ConfigurationContext -> opts.Bootstrap
//
// Deterministic keys:
//
//	Ref.Identifier() provides the canonical storage key, one of
//	global/<domain>, entity/<entity>/<domain> or
//	property/<entity>/<property>/<domain>.
package state
