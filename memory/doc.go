// Package memory contains concrete core.ResponseCache implementations. The
// cache interface resides in the core package; remote clients depend on it
// and select an implementation at wiring time.
package memory
