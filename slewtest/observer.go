package slewtest

// Observer receives live events from a Runner. Calls come from the
// goroutine running the test and must not block for long.
type Observer interface {
	// Progress is called with every position read while polling.
	Progress(altitude, azimuth float64)
	Complete(r Result)
	Timeout(label string)
	Error(err error)
}

// Observers fans events out to each member in order.
type Observers []Observer

func (os Observers) Progress(altitude, azimuth float64) {
	for _, o := range os {
		o.Progress(altitude, azimuth)
	}
}

func (os Observers) Complete(r Result) {
	for _, o := range os {
		o.Complete(r)
	}
}

func (os Observers) Timeout(label string) {
	for _, o := range os {
		o.Timeout(label)
	}
}

func (os Observers) Error(err error) {
	for _, o := range os {
		o.Error(err)
	}
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Progress(altitude, azimuth float64) {}
func (NopObserver) Complete(r Result)                  {}
func (NopObserver) Timeout(label string)               {}
func (NopObserver) Error(err error)                    {}
