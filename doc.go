/*
Package opbridge lets an engine perform asynchronous operations that only a host runtime can
carry out, and consume long-lived value streams with two-sided cancellation.

The host implements ports.Executor: it advertises the kinds it supports (network, file read,
file write) and notifies exactly one outcome per accepted request. The Bridge validates each
request and checks capability before anything reaches the host, so an invalid URL or an
unsupported kind fails immediately instead of hanging.

# One-shot operations

	bridge, err := opbridge.New(file.New())
	if err != nil {
		log.Fatal(err)
	}
	resp, err := bridge.WriteFile(ctx, "/tmp/notes.txt", []byte("hello"), domain.Abort)

Domain failures (a refused connection, a non-2xx status, a permission error) are carried by
the outcome and surface as typed errors such as *domain.NetworkError. A non-nil error from
Dispatch itself means the request never reached the host or ctx ended.

# Subscriptions

Subscribe opens a push subscription: the host pushes values into a ports.Publisher and
registers a cancellation listener once it confirmed the subscription. PollNetwork opens a
polling subscription that repeats a network request on a fixed delay and suppresses
immediate repeats. Both share one state machine:

	Created -> Subscribed -> Active -> Cancelling -> Terminated

Cancel is idempotent and may be called from either side at any time. A cancelled
subscription stops delivering values immediately and terminates when the producer
acknowledges, or after the grace period when it never does.
*/
package opbridge
