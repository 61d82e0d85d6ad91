// Package patch applies a custom unified-diff-like format to a set of
// text files.
//
// The format is built for patches emitted by a language model, which are
// usually close to the target files but rarely bit-exact: trailing
// whitespace drifts, Unicode look-alike punctuation creeps in, hunk
// headers are malformed and narration surrounds the diff. The engine
// repairs trivially safe defects, records every tolerated deviation in a
// fuzz score, and fails loudly whenever the context is genuinely
// ambiguous.
//
// All filesystem access goes through injected read/write/remove
// callbacks, so the engine is pure with respect to process state and
// straightforward to embed in agents, editors and tests.
package patch
