package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

// Metrics is the set of instruments one trading unit reports to.
type Metrics struct {
	Cycles          Counter
	CyclesAborted   Counter
	OrdersPlaced    Counter
	OrdersRejected  Counter
	EmergencyCloses Counter
	EntriesSkipped  Counter
	Reentries       Counter
	UnitStopped     Counter
	Direction       Gauge
}

// Provider hands out per-asset instruments.
type Provider interface {
	ForAsset(asset string) *Metrics
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		Cycles:          n,
		CyclesAborted:   n,
		OrdersPlaced:    n,
		OrdersRejected:  n,
		EmergencyCloses: n,
		EntriesSkipped:  n,
		Reentries:       n,
		UnitStopped:     n,
		Direction:       noopGauge{},
	}
}

type noopProvider struct{}

func (noopProvider) ForAsset(string) *Metrics { return NewNoop() }

func NoopProvider() Provider { return noopProvider{} }
