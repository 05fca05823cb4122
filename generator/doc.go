// Package generator defines the response and prompt producer contract and
// the adapters that turn producers into executor tasks.
//
// A Generator proposes a response candidate each turn. It may also implement
// Prompter, to propose a follow-up prompt after another producer's response,
// and StateUpdater, to decide what state it carries into the next turn once
// the winners are known. Without StateUpdater the chosen candidate's proposed
// state is adopted and producers that were not chosen keep their state.
//
// Built-in producers:
//   - Fallback: the universal fallback, always available at the lowest
//     rankable priority
//   - LLM: a model-backed conversational producer
//   - Func: wraps plain functions, handy for tests and small deployments
package generator
