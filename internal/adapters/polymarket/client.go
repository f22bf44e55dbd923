package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCLOBBase  = "https://clob.polymarket.com"
	defaultGammaBase = "https://gamma-api.polymarket.com"

	// Rate limits al 60% de los límites documentados.
	// Gamma /markets: 300/10s → 18/s
	gammaRatePerSec = 18
	// CLOB general (fee-rate, cancel, heartbeat): 9000/10s → 540/s
	generalRatePerSec = 540
	// CLOB POST /order(s): 3500/10s → 210/s
	ordersRatePerSec = 210

	maxRetries    = 3
	baseRetryWait = 250 * time.Millisecond
	maxRetryWait  = 2 * time.Second

	// El camino de órdenes va por un client con timeout corto: un submit lento
	// bloquea el ciclo entero y el siguiente tick ya tendrá otro quote.
	readTimeout  = 10 * time.Second
	orderTimeout = 3 * time.Second
)

// APIError es una respuesta HTTP no-2xx del CLOB o de Gamma.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client es el HTTP client de Polymarket con rate limiting y retries.
type Client struct {
	http          *http.Client
	orderHTTP     *http.Client
	clobBase      string
	gammaBase     string
	clobLimiter   *rate.Limiter
	gammaLimiter  *rate.Limiter
	ordersLimiter *rate.Limiter
}

// NewClient crea un Client con los base URLs dados.
// Si clobBase o gammaBase están vacíos, usa los URLs de producción.
func NewClient(clobBase, gammaBase string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	return &Client{
		http:          &http.Client{Timeout: readTimeout},
		orderHTTP:     &http.Client{Timeout: orderTimeout},
		clobBase:      clobBase,
		gammaBase:     gammaBase,
		clobLimiter:   rate.NewLimiter(generalRatePerSec, 50),
		gammaLimiter:  rate.NewLimiter(gammaRatePerSec, 10),
		ordersLimiter: rate.NewLimiter(ordersRatePerSec, 20),
	}
}

// get hace un GET público con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.send(ctx, c.http, limiter, maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

// send construye y envía la request hasta retries+1 veces. build se llama en cada
// intento para que las cabeceras firmadas lleven un timestamp fresco.
// Solo se reintentan errores de red, 429 y 5xx; un 4xx vuelve de inmediato.
func (c *Client) send(ctx context.Context, hc *http.Client, limiter *rate.Limiter, retries int,
	build func() (*http.Request, error), out any) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryWait(attempt-1, lastErr)); err != nil {
				return err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		body, err := doRequest(hc, req)
		if err != nil {
			lastErr = err
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("polymarket: request failed, retrying",
				"method", req.Method, "path", req.URL.Path, "attempt", attempt+1, "err", err)
			continue
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("after %d retries: %w", retries, lastErr)
}

// retryAfterError lleva la espera que pide un 429 con Retry-After.
type retryAfterError struct {
	*APIError
	after time.Duration
}

func (e *retryAfterError) Unwrap() error { return e.APIError }

func doRequest(hc *http.Client, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Body: string(body)}
	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Warn("polymarket: rate limited by API", "path", req.URL.Path)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, &retryAfterError{APIError: apiErr, after: time.Duration(secs) * time.Second}
		}
	}
	return nil, apiErr
}

// retryWait es backoff exponencial acotado, o lo que pida el servidor en un 429.
func retryWait(attempt int, err error) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return min(ra.after, maxRetryWait)
	}
	return min(baseRetryWait<<attempt, maxRetryWait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
