package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// Journal persiste la actividad de trading para auditoría y el modo -report.
type Journal interface {
	RecordRotation(ctx context.Context, r domain.Rotation) error
	RecordFill(ctx context.Context, f domain.FillRecord) error
	RecordCycle(ctx context.Context, c domain.CycleRecord) error
	RecordHalt(ctx context.Context, h domain.HaltRecord) error

	// Report agrega por ventana todo lo registrado desde since.
	Report(ctx context.Context, since time.Time) ([]domain.WindowReport, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
