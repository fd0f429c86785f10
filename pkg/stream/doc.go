// Package stream manages long-lived, multi-value subscriptions between a producer and a
// single consumer living on independent schedulers.
//
// Every subscription follows one state machine:
//
//	Created -> Subscribed -> Active -> Cancelling -> Terminated
//
// A subscription becomes Active when the producer registers its cancellation listener.
// Either side may stop it: the consumer with Cancel, the producer with Finished or Fail.
// Cancellation is a notification, never a handshake. A producer that does not acknowledge
// within the grace period is cut off locally.
//
// Two strategies share the state machine: push (Subscribe, the producer calls OnValue) and
// poll (Poll, a restartable Poller repeatedly calls a one-shot fetch).
package stream
