// Package cmt implements the cooperative multitasking runtime that
// coordinates work across the rover's two processor cores and the
// interrupt-driven I/O subsystems hanging off of them.
//
// A Runtime owns, per core, a QueueSet (three fixed-capacity priority
// rings) and a Dispatcher that drains it, a shared Scheduler of
// deferred-delivery slots ticked once per millisecond, and a
// double-buffered Status accumulator. Clients never see the Runtime's
// interior state directly: they Post messages, Schedule deferred
// messages, register handlers in a Registry, and run inside a
// Dispatcher's RunLoop.
//
// The radio-control receive pipeline lives in the sibling rcrx
// package and is itself just a (particularly hardware-heavy) client
// of this runtime.
package cmt
