// Package harness defines the neutral contracts shared by the instance registry,
// the event correlator, session providers, and the HTTP routing glue.
//
// The package carries no runtime state. Message payloads are a closed sum type:
// every MessagePayload carries exactly one Content variant selected by Kind.
package harness
