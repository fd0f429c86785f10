/*
Package ports defines the boundary interfaces between the engine and the host.

The host implements Executor (one-shot effects) and, for host-driven streams, drives a
Publisher handed to it by the engine. The engine implements Listener and
CancellationListener and hands them to the host. Each method is a narrow message: no
shared mutable state crosses the boundary, only domain value objects.

# Key Interfaces

  - Executor: performs requests of the kinds it advertises and notifies a Listener exactly once.
  - Listener: single-use callback receiving the Outcome of one request.
  - Publisher: receives the values of a stream, its end, and the other side's cancellation listener.
  - CancellationListener: notified when the other side stops a stream.
*/
package ports
