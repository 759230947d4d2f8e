// Package poller provides the HTTP transport behind matrixsend readiness
// probes.
//
// The main component is [Client], a pooled HTTP client that performs one
// request per call with a per-request timeout applied through the context.
// Callers classify the returned [Response]; the package itself never retries.
//
// Users of the matrixsend library should not need to interact with this
// package directly. Probing is configured through the root package.
package poller
