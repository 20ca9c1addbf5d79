// Package bot is the composition root. It wires configuration and an
// injected platform collaborator into the dispatch pipeline, the lifecycle
// coordinator, and the monitor servers, and owns the process's startup and
// shutdown ordering.
package bot
