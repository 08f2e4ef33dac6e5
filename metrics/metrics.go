package metrics

type Counter interface {
	Inc()

	Add(delta float64)
}

type Factory interface {
	CreateCounter(name string, description string) (Counter, error)

	Start() error

	Stop() error
}

// NoopFactory is used when metrics are disabled.
type NoopFactory struct {
}

func (f *NoopFactory) CreateCounter(name string, description string) (Counter, error) {
	return &noopCounter{}, nil
}

func (f *NoopFactory) Start() error {
	return nil
}

func (f *NoopFactory) Stop() error {
	return nil
}

type noopCounter struct {
}

func (c *noopCounter) Inc() {
}

func (c *noopCounter) Add(delta float64) {
}
