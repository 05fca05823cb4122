// Package model defines the provider-agnostic text generation contract used
// by model-backed response producers.
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so the
// generator layer stays decoupled from vendor SDKs. Generation is exposed as
// a pair of channels: zero or more partial chunks followed by one final
// response, or a single error. Collect drains both into one Response.
package model
