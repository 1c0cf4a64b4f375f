// Package readiness provides pod readiness evaluation for the smoke test.
// It lists coordinator pods by label selector and waits, with a bounded
// poll, until every matching pod satisfies a readiness predicate such as
// the PodReady condition.
package readiness
