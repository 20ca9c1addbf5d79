// Package builtins provides the built-in commands registered on every bot:
// ping reports gateway latency, stats reports dispatch statistics and
// runtime resource usage. Both read live state at invocation time.
package builtins
