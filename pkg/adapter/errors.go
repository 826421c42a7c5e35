package adapter

import "errors"

// ErrShutdownTimeout is returned by Serve when sessions were still running
// after ShutdownTimeout and had to be force-closed.
var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
