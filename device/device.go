package device

// Context is a handle onto one accelerator device and its command queue. All
// operations are enqueued without blocking and may retire out of order - the only
// ordering a caller can rely on is the one expressed through wait-lists. A Context
// is explicitly opened and closed by its owner; multiple contexts can coexist in
// the same process (the tests run entirely against simulated contexts).
type Context interface {
	DeviceName() string

	// Alloc reserves device storage of the given byte size. The returned handle
	// stays valid until Free or Close.
	Alloc(name string, size int) (Mem, error)

	Free(mem Mem) error

	// EnqueueWrite copies host memory to device storage for every op in the batch,
	// once every token in waitFor is satisfied. Returns a token satisfied when all
	// copies have landed.
	EnqueueWrite(ops []CopyOp, waitFor []*Token) (*Token, error)

	// EnqueueRead is the device to host inverse of EnqueueWrite.
	EnqueueRead(ops []CopyOp, waitFor []*Token) (*Token, error)

	// EnqueueKernel launches the named kernel against the given device buffers once
	// every token in waitFor is satisfied.
	EnqueueKernel(kernel string, args []Mem, waitFor []*Token) (*Token, error)

	// Finish blocks until every enqueued operation has retired and returns the error
	// of the first operation that failed, if any. Used only for the pipeline start
	// and end barriers.
	Finish() error

	Close() error
}

// Mem is an opaque handle to device storage.
type Mem interface {
	Size() int
}

// CopyOp pairs a host memory region with the device storage it mirrors. Name is
// diagnostic only.
type CopyOp struct {
	Name string
	Host []byte
	Mem  Mem
}
