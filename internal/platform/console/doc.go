// Package console implements the gateway collaborator surface over an
// io.Reader and io.Writer. It exists so `coven-bot serve` works end to end
// on a developer machine: lines typed on stdin become interactions, and
// replies print to stdout.
package console
