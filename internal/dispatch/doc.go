// Package dispatch runs the per-interaction protocol state machine.
//
// Each inbound interaction goes through the same pipeline:
//
//  1. Acquire an admission permit from the gate. Rejected requests get an
//     ephemeral "overloaded" reply and are never dispatched or counted.
//  2. Resolve the handler by command name. Unknown commands get an
//     ephemeral reply and leave no statistics entry.
//  3. Execute the handler under the configured command deadline, with
//     panic recovery. A fired deadline cancels only the handler's context.
//  4. Classify the outcome (success, failure kind, timeout), emit the mapped
//     ephemeral message for failures, and record statistics.
//  5. Release the permit — guaranteed on every branch, including panics.
//
// Per-interaction errors never propagate past the dispatcher: they are
// logged with the command name, user ID, request ID, and elapsed time, then
// converted to a fixed user-facing message.
package dispatch
