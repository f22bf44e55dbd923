package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnknownStrategy se devuelve cuando el id configurado no está registrado.
// Es un error fatal de arranque.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy describe una familia de mercados Up/Down: qué activo de referencia sigue,
// cómo se llaman sus ventanas en Gamma y con qué cadencia hay que vigilarlas.
type Strategy interface {
	// ID es el identificador de configuración, ej. "btc-updown-15m".
	ID() string
	// Asset es el símbolo del feed de referencia, ej. "btcusdt".
	Asset() string
	// Window es la duración de cada ventana.
	Window() time.Duration
	// PollInterval es el intervalo del tick del lifecycle.
	PollInterval() time.Duration
	// TradesPerYear es la tasa de trades asumida para anualizar la varianza EWMA.
	TradesPerYear() float64
	// Slugs devuelve los slugs de Gamma de la ventana que contiene now y de la siguiente.
	Slugs(now time.Time) []string
}

// registry es el conjunto de familias soportadas.
var registry = map[string]Strategy{}

func register(s Strategy) {
	registry[s.ID()] = s
}

func init() {
	// ~10 trades/s en BTCUSDT, menos en los alts.
	register(newEpochStrategy("btc", "btcusdt", 15*time.Minute, 5*time.Second, 10*secondsPerYear))
	register(newEpochStrategy("eth", "ethusdt", 15*time.Minute, 5*time.Second, 6*secondsPerYear))
	register(newEpochStrategy("sol", "solusdt", 15*time.Minute, 5*time.Second, 3*secondsPerYear))
	register(newHourlyStrategy("btc", "bitcoin", "btcusdt", 10*time.Second, 10*secondsPerYear))
}

const secondsPerYear = 365.25 * 24 * 60 * 60

// Get devuelve la estrategia registrada con ese id.
func Get(id string) (Strategy, error) {
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("strategy.Get: %q: %w (available: %s)", id, ErrUnknownStrategy, strings.Join(IDs(), ", "))
	}
	return s, nil
}

// IDs devuelve los ids registrados en orden alfabético.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// base agrupa las constantes de timing comunes.
type base struct {
	id            string
	asset         string
	window        time.Duration
	poll          time.Duration
	tradesPerYear float64
}

func (b base) ID() string                  { return b.id }
func (b base) Asset() string               { return b.asset }
func (b base) Window() time.Duration       { return b.window }
func (b base) PollInterval() time.Duration { return b.poll }
func (b base) TradesPerYear() float64      { return b.tradesPerYear }

// epochStrategy nombra cada ventana con el unix timestamp de su inicio:
// "btc-updown-15m-1760880600".
type epochStrategy struct {
	base
	prefix string
}

func newEpochStrategy(ticker, asset string, window, poll time.Duration, tradesPerYear float64) epochStrategy {
	label := fmt.Sprintf("%dm", int(window.Minutes()))
	id := fmt.Sprintf("%s-updown-%s", ticker, label)
	return epochStrategy{
		base:   base{id: id, asset: asset, window: window, poll: poll, tradesPerYear: tradesPerYear},
		prefix: id,
	}
}

func (s epochStrategy) Slugs(now time.Time) []string {
	start := now.UTC().Truncate(s.window)
	return []string{
		fmt.Sprintf("%s-%d", s.prefix, start.Unix()),
		fmt.Sprintf("%s-%d", s.prefix, start.Add(s.window).Unix()),
	}
}

// hourlyStrategy usa los slugs legibles en hora de Nueva York:
// "bitcoin-up-or-down-october-19-3pm-et".
type hourlyStrategy struct {
	base
	name string
	loc  *time.Location
}

func newHourlyStrategy(ticker, name, asset string, poll time.Duration, tradesPerYear float64) hourlyStrategy {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Sin tzdata en el sistema: EDT fijo, la mayoría del año es correcto.
		loc = time.FixedZone("EDT", -4*60*60)
	}
	return hourlyStrategy{
		base: base{id: ticker + "-updown-1h", asset: asset, window: time.Hour, poll: poll, tradesPerYear: tradesPerYear},
		name: name,
		loc:  loc,
	}
}

func (s hourlyStrategy) Slugs(now time.Time) []string {
	start := now.In(s.loc).Truncate(time.Hour)
	return []string{s.slugFor(start), s.slugFor(start.Add(time.Hour))}
}

func (s hourlyStrategy) slugFor(t time.Time) string {
	t = t.In(s.loc)
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "am"
	if t.Hour() >= 12 {
		meridiem = "pm"
	}
	return fmt.Sprintf("%s-up-or-down-%s-%d-%d%s-et",
		s.name, strings.ToLower(t.Month().String()), t.Day(), hour, meridiem)
}
