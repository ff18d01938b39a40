// Package audit relays security events from the engine to a caller-supplied
// sink on a background goroutine.
//
// The [Dispatcher] either drops events when its buffer is full (counting
// them) or blocks the emitting request until there is room, depending on
// [Config.DropIfFull]. A panicking sink is logged and does not stop the
// relay.
//
// The package decides nothing about which events exist; the engine does.
package audit
