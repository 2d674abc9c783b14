// Package metrics exposes daemon counters through Prometheus: frames on
// the link, system commands by id and outcome, retransmissions and
// unsolicited notifications.
package metrics
