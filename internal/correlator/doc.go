// Package correlator applies inbound message events to one instance's message store.
//
// Apply is a pure function of (event, store): it never returns an error, and
// unknown kinds or missing mutation targets are no-ops. Attach wires Apply to a
// session so that every delivered payload is applied atomically, in delivery order.
package correlator
