// Package latency guarda ventanas móviles de tiempos para mostrarlas.
// Nada en el camino de control lee de aquí.
package latency

import (
	"slices"
	"sync"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const DefaultWindow = 512

// Nombres de las series registradas por el quoter.
const (
	CycleTotal  = "cycle_total"
	CycleSign   = "cycle_sign"
	CycleCancel = "cycle_cancel"
	CycleSubmit = "cycle_submit"
	FeedLag     = "feed_lag"
)

// ring es un buffer circular de duraciones.
type ring struct {
	samples []time.Duration
	next    int
	full    bool
}

func (r *ring) add(d time.Duration) {
	r.samples[r.next] = d
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) values() []time.Duration {
	if r.full {
		return slices.Clone(r.samples)
	}
	return slices.Clone(r.samples[:r.next])
}

// Monitor es seguro para uso concurrente.
type Monitor struct {
	size int

	mu     sync.Mutex
	series map[string]*ring
	order  []string
}

// New crea un monitor con ventanas de size muestras.
func New(size int) *Monitor {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Monitor{size: size, series: make(map[string]*ring)}
}

// Record añade una muestra a la serie name. Las muestras negativas se ignoran.
func (m *Monitor) Record(name string, d time.Duration) {
	if d < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.series[name]
	if !ok {
		r = &ring{samples: make([]time.Duration, m.size)}
		m.series[name] = r
		m.order = append(m.order, name)
	}
	r.add(d)
}

// RecordCycle registra las fases de un ciclo cancel-and-replace.
func (m *Monitor) RecordCycle(t domain.CycleTimings) {
	m.Record(CycleTotal, t.Total)
	m.Record(CycleSign, t.Sign)
	m.Record(CycleCancel, t.Cancel)
	if t.Submit > 0 {
		m.Record(CycleSubmit, t.Submit)
	}
}

// Snapshot devuelve las estadísticas de cada serie, en orden de creación.
func (m *Monitor) Snapshot() []domain.LatencyStat {
	m.mu.Lock()
	names := slices.Clone(m.order)
	samples := make([][]time.Duration, len(names))
	for i, n := range names {
		samples[i] = m.series[n].values()
	}
	m.mu.Unlock()

	out := make([]domain.LatencyStat, 0, len(names))
	for i, n := range names {
		out = append(out, summarize(n, samples[i]))
	}
	return out
}

func summarize(name string, v []time.Duration) domain.LatencyStat {
	s := domain.LatencyStat{Name: name, Count: len(v)}
	if len(v) == 0 {
		return s
	}
	slices.Sort(v)

	var sum time.Duration
	for _, d := range v {
		sum += d
	}
	s.Mean = sum / time.Duration(len(v))
	s.P50 = percentile(v, 50)
	s.P99 = percentile(v, 99)
	s.Max = v[len(v)-1]
	return s
}

// percentile usa nearest-rank sobre un slice ya ordenado.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100 // ceil(p/100 × n)
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
