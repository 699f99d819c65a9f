// Package sanitizer turns loosely-typed extraction output into the canonical invoice shape.
//
// Every function in the package is total: malformed input never produces an error or a
// panic, it produces a default. Numbers fall back to 0, text to the empty string,
// collections to empty slices and nested records to empty-but-well-shaped values. The
// only error the package reports is a ContractError from AssertContract, which is meant
// for tests and for callers that want a strict post-condition.
//
// The functions hold no state and may be called concurrently.
//
// Normalization includes:
//   - Keys: trim, spaces to underscores, accents folded to ASCII ("descrição" becomes "descricao")
//   - Numbers: native ints, floats and numeric strings, including Brazilian "3.500,00", to int64
//   - Text: trim and repair UTF-8 text that was decoded as Latin-1 ("SoluÃ§Ãµes" becomes "Soluções")
//   - Records: exact key allow-lists for the invoice, parties, line items and taxes
package sanitizer
