// Package prometheus renders goMFA metrics in Prometheus text exposition
// format.
//
// [New] reads [goMFA.Engine.MetricsSnapshot] on every scrape. Counter names
// are gomfa_*_total; verification outcomes carry a method label:
//
//	gomfa_verification_success_total{method="totp"} 12
//	gomfa_verification_failed_total{method="sms"} 3
//
// The single histogram is gomfa_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
