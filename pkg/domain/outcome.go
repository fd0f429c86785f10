package domain

import "encoding/json"

// Outcome is the single result a host delivers for a dispatched request: either the
// success payload of the request's kind or a failure from that kind's taxonomy.
// The zero value is not a valid outcome; use the constructors.
type Outcome struct {
	kind      OperationKind
	network   NetworkResponse
	fileRead  FileReadResponse
	fileWrite FileWriteResponse
	err       error
}

func NetworkSuccess(resp NetworkResponse) Outcome {
	return Outcome{kind: KindNetwork, network: resp}
}

func NetworkFailure(err *NetworkError) Outcome {
	if err == nil {
		Violate("outcome", "network failure built without an error")
	}
	return Outcome{kind: KindNetwork, err: err}
}

func FileReadSuccess(resp FileReadResponse) Outcome {
	return Outcome{kind: KindFileRead, fileRead: resp}
}

func FileReadFailure(err *FileReadError) Outcome {
	if err == nil {
		Violate("outcome", "file read failure built without an error")
	}
	return Outcome{kind: KindFileRead, err: err}
}

func FileWriteSuccess(resp FileWriteResponse) Outcome {
	return Outcome{kind: KindFileWrite, fileWrite: resp}
}

func FileWriteFailure(err *FileWriteError) Outcome {
	if err == nil {
		Violate("outcome", "file write failure built without an error")
	}
	return Outcome{kind: KindFileWrite, err: err}
}

// Kind returns the operation kind the outcome belongs to.
func (o Outcome) Kind() OperationKind { return o.kind }

// Failed reports whether the outcome carries a failure.
func (o Outcome) Failed() bool { return o.err != nil }

// Err returns the failure, if any. It is one of *NetworkError, *FileReadError or
// *FileWriteError.
func (o Outcome) Err() error { return o.err }

// Network returns the network payload or failure.
func (o Outcome) Network() (NetworkResponse, error) {
	o.expect(KindNetwork)
	return o.network, o.err
}

// FileRead returns the read payload or failure.
func (o Outcome) FileRead() (FileReadResponse, error) {
	o.expect(KindFileRead)
	return o.fileRead, o.err
}

// FileWrite returns the write payload or failure.
func (o Outcome) FileWrite() (FileWriteResponse, error) {
	o.expect(KindFileWrite)
	return o.fileWrite, o.err
}

// Value returns the success payload as an untyped value, or nil on failure.
func (o Outcome) Value() any {
	if o.err != nil {
		return nil
	}
	switch o.kind {
	case KindNetwork:
		return o.network
	case KindFileRead:
		return o.fileRead
	case KindFileWrite:
		return o.fileWrite
	}
	return nil
}

func (o Outcome) expect(kind OperationKind) {
	if o.kind != kind {
		Violate("outcome kind", "read %s outcome as %s", o.kind, kind)
	}
}

type outcomeJSON struct {
	Kind  OperationKind `json:"kind"`
	OK    bool          `json:"ok"`
	Value any           `json:"value,omitempty"`
	Error error         `json:"error,omitempty"`
}

// MarshalJSON renders the outcome as {"kind", "ok", "value"|"error"}. Errors are encoded
// with their own JSON fields.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Kind:  o.kind,
		OK:    o.err == nil,
		Value: o.Value(),
		Error: o.err,
	})
}
