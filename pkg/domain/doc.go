/*
Package domain contains the value objects exchanged across the engine/host boundary.

Everything in this package is an immutable, serializable value: requests describing what the
host must do, outcomes describing what happened, and the closed error taxonomy for each
operation kind. No live resource handles cross the boundary, and nothing here performs I/O.

# Key Entities

  - Request: one of NetworkRequest, FileReadRequest or FileWriteRequest, tagged by OperationKind.
  - Outcome: the single success/failure result a host delivers for a dispatched Request.
  - NetworkError, FileReadError, FileWriteError: per-kind failure payloads.
  - ContractViolation: the panic value used when either side breaks the wiring contract.
*/
package domain
