// Package remote implements tasks and producers backed by remote model
// services. Every call is one JSON POST under the caller's context: a non-2xx
// status, a malformed body or a body with "error": true is an operation
// failure, which the orchestrator turns into the task's default value.
//
// Request bodies are assembled with sjson and responses are validated and
// read with gjson, so services can return arbitrary JSON and callers pick the
// value they need by path.
package remote
