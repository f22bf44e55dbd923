package ports

import (
	"context"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// StatusNotifier presenta el estado del quoter al operador.
type StatusNotifier interface {
	// Notify muestra la foto actual. En consola imprime una tabla.
	Notify(ctx context.Context, status domain.Status) error
}
