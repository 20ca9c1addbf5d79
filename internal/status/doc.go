// Package status tracks the bot's lifecycle state.
//
// The Tracker is a small single-owner state machine over
// {stopped, starting, running, stopping, error}. All mutations funnel
// through Transition, which validates the requested change, stores the new
// state, and synchronously notifies subscribed observers with a Change
// record carrying the previous state, new state, human-readable message,
// and optional failure cause.
//
// Only the lifecycle coordinator calls Transition; every other component
// reads the state through Current, which is a lock-free atomic load.
package status
