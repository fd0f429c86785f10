package domain

// NetworkResponse is the success payload of a network operation.
type NetworkResponse struct {
	StatusCode uint16  `json:"status_code"`
	Headers    Headers `json:"headers,omitempty"`
	Body       []byte  `json:"body,omitempty"`
}

// FileReadResponse is the success payload of a file read. A missing file is a success
// with Exists == false, not a failure.
type FileReadResponse struct {
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Contents []byte `json:"contents,omitempty"`
}

// FileExists builds the response for a file that was read.
func FileExists(path string, contents []byte) FileReadResponse {
	return FileReadResponse{Path: path, Exists: true, Contents: contents}
}

// FileDoesNotExist builds the response for a missing file.
func FileDoesNotExist(path string) FileReadResponse {
	return FileReadResponse{Path: path}
}

// WriteStatus tells whether a write happened.
type WriteStatus string

const (
	WriteStatusDidWrite         WriteStatus = "did_write"
	WriteStatusOverwriteAborted WriteStatus = "overwrite_aborted"
)

// FileWriteResponse is the success payload of a file write.
type FileWriteResponse struct {
	Status         WriteStatus `json:"status"`
	AlreadyExisted bool        `json:"already_existed"`
}

// DidWrite reports a completed write.
func DidWrite(alreadyExisted bool) FileWriteResponse {
	return FileWriteResponse{Status: WriteStatusDidWrite, AlreadyExisted: alreadyExisted}
}

// OverwriteAborted reports an Abort strategy hitting an existing target.
func OverwriteAborted() FileWriteResponse {
	return FileWriteResponse{Status: WriteStatusOverwriteAborted, AlreadyExisted: true}
}

// Aborted reports whether the write was skipped.
func (r FileWriteResponse) Aborted() bool {
	return r.Status == WriteStatusOverwriteAborted
}
