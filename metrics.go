package secretshare

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts authentication outcomes. A nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	logins       *prometheus.CounterVec
	usersCreated *prometheus.CounterVec
	secrets      prometheus.Counter
}

// NewMetrics registers the counters on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretshare",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		usersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretshare",
			Name:      "users_created_total",
			Help:      "User records created by strategy.",
		}, []string{"strategy"}),
		secrets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretshare",
			Name:      "secrets_submitted_total",
			Help:      "Secrets saved through /submit.",
		}),
	}
	m.registry.MustRegister(m.logins, m.usersCreated, m.secrets)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeLogin(s Strategy, err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(string(s), outcome(err)).Inc()
}

func (m *Metrics) observeCreated(s Strategy) {
	if m == nil {
		return
	}
	m.usersCreated.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) observeSecret() {
	if m == nil {
		return
	}
	m.secrets.Inc()
}

func outcome(err error) string {
	var authErr *AuthError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &authErr):
		return authErr.Code
	default:
		return ErrCodeStoreUnavailable
	}
}
