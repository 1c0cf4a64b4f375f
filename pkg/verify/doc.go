// Package verify implements the post-deployment verification pipeline: it
// counts coordinator pods, waits for readiness with a bounded poll, probes
// the HTTP health endpoint and optionally asserts the reported server
// status. Stages run strictly in sequence and the first unmet condition
// terminates the run with a typed failure naming the stage.
package verify
