package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.StatusNotifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
// table=false imprime una sola línea por status; true añade la tabla de latencias.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime la foto actual del quoter.
func (c *Console) Notify(_ context.Context, s domain.Status) error {
	c.printCompact(s)
	if c.table {
		c.printDetail(s)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(s domain.Status) {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ", at.Format("15:04:05"))

	w := s.Market.Window
	if w.IsZero() {
		sb.WriteString("no market")
		fmt.Fprintln(c.out, sb.String())
		return
	}

	fmt.Fprintf(&sb, "%s ttl=%s", compactName(w.Label(), 32), formatTTL(w.TimeToExpiry(at)))
	if s.Market.StrikeLocked() {
		fmt.Fprintf(&sb, " K=%.2f", s.Market.StrikePrice)
	} else {
		sb.WriteString(" K=?")
	}
	fmt.Fprintf(&sb, " S=%.2f σ=%.1f%% fv=%.3f", s.Spot, s.Vol*100, s.FairValue)
	if s.BestBid > 0 || s.BestAsk > 0 {
		fmt.Fprintf(&sb, " mkt=%.2f/%.2f", s.BestBid, s.BestAsk)
	}
	fmt.Fprintf(&sb, " | %s", formatQuote(s.Quote))
	fmt.Fprintf(&sb, " | pos=%+.1f pnl=$%+.2f", s.Position.NetDelta, s.Position.TotalPnL())

	status := s.Decision.String()
	if s.Halted {
		status = "HALTED"
	}
	fmt.Fprintf(&sb, " [%s]", status)

	fmt.Fprintln(c.out, sb.String())
}

// printDetail imprime órdenes vivas y la tabla de latencias.
func (c *Console) printDetail(s domain.Status) {
	o := s.Orders
	if o.Empty() {
		fmt.Fprintln(c.out, "  orders: (none)")
	} else {
		fmt.Fprintf(c.out, "  orders: bid %s  ask %s\n",
			formatOrder(o.BidOrderID, o.BidPrice, o.BidSize),
			formatOrder(o.AskOrderID, o.AskPrice, o.AskSize))
	}

	if len(s.Latency) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "N", "Mean", "P50", "P99", "Max")
	for _, l := range s.Latency {
		table.Append(
			l.Name,
			fmt.Sprintf("%d", l.Count),
			formatMs(l.Mean),
			formatMs(l.P50),
			formatMs(l.P99),
			formatMs(l.Max),
		)
	}
	table.Render()
}

// PrintReport imprime el resumen del journal por ventana (modo -report).
func (c *Console) PrintReport(reports []domain.WindowReport, since time.Time) {
	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  QUOTER REPORT since %s\n", since.Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "========================================================\n\n")

	if len(reports) == 0 {
		fmt.Fprintln(c.out, "  No windows recorded yet.")
		return
	}

	var fills, cycles, failed, halts int
	var volume, pnl float64

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Start", "Market", "Fills", "Volume", "RealPnL", "Cycles", "Failed", "Halts")
	for _, r := range reports {
		name := r.Slug
		if name == "" {
			name = domain.TruncateQuestion("", r.ConditionID, 30)
		}
		tbl.Append(
			r.StartedAt.Local().Format("01-02 15:04"),
			compactName(name, 36),
			fmt.Sprintf("%d", r.Fills),
			fmt.Sprintf("%.1f", r.Volume),
			fmt.Sprintf("$%+.4f", r.RealizedPnL),
			fmt.Sprintf("%d", r.Cycles),
			fmt.Sprintf("%d", r.FailedCycles),
			fmt.Sprintf("%d", r.Halts),
		)
		fills += r.Fills
		volume += r.Volume
		pnl += r.RealizedPnL
		cycles += r.Cycles
		failed += r.FailedCycles
		halts += r.Halts
	}
	tbl.Render()

	fmt.Fprintf(c.out, "\n  --- AGGREGATE ---\n")
	fmt.Fprintf(c.out, "  Windows:        %d\n", len(reports))
	fmt.Fprintf(c.out, "  Fills:          %d (%.1f shares)\n", fills, volume)
	fmt.Fprintf(c.out, "  Realized PnL:   $%.4f\n", pnl)
	if cycles > 0 {
		fmt.Fprintf(c.out, "  Cycles:         %d (%.1f%% failed)\n", cycles, float64(failed)/float64(cycles)*100)
	} else {
		fmt.Fprintf(c.out, "  Cycles:         0\n")
	}
	fmt.Fprintf(c.out, "  Halts:          %d\n", halts)
	fmt.Fprintln(c.out)
}

func formatQuote(q domain.Quote) string {
	if q.Empty() {
		return "no quote"
	}
	bid, ask := "-", "-"
	if q.HasBid() {
		bid = fmt.Sprintf("%.2f×%.0f", q.BidPrice, q.BidSize)
	}
	if q.HasAsk() {
		ask = fmt.Sprintf("%.2f×%.0f", q.AskPrice, q.AskSize)
	}
	return bid + " / " + ask
}

func formatOrder(id string, price, size float64) string {
	if id == "" {
		return "-"
	}
	return fmt.Sprintf("%.2f×%.0f (%s)", price, size, shortID(id))
}

func formatTTL(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	return d.Truncate(time.Second).String()
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

// compactName acorta un nombre para la salida compacta.
func compactName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}
