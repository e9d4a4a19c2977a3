// Package identity implements PortLib's account verification and disciplinary
// suspension services: OTP-gated signup and login, admin provisioning through
// one-shot access keys, and a warning-driven suspension engine.
//
// Account lifecycle:
//   - Accounts carry a Status persisted via Bun. Users move pending -> active
//     once both signup OTPs are consumed; admins move pending_approval ->
//     active when the first admin approves them. AccountStateMachine owns the
//     transition graph, hooks, and persistence.
//   - Suspension is a separate flag layered on top of an active account. The
//     DisciplinaryEngine raises it automatically when the warning count
//     reaches the configured threshold, and admins can set or clear it
//     directly.
//
// One-time codes:
//   - OneTimeCodes issues and consumes purpose-scoped OTPs (email and SMS
//     verification, login, password reset). Consumption is a single
//     conditional delete so a code can never be redeemed twice.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the command
//     handlers, the state machine, and the disciplinary engine to describe
//     lifecycle, login, warning, and password reset events. Sinks run
//     best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package identity
