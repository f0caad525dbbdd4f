// Package metrics holds the Prometheus registry and every collector the
// server and worker export.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "events"

// Registry is the process-wide Prometheus registry.
var Registry = prometheus.NewRegistry()

var (
	// RegistrationsTotal counts registration attempts by outcome:
	// registered, already_registered, capacity, expired, error.
	RegistrationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Event registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// UnregistrationsTotal counts successful unregistrations.
	UnregistrationsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unregistrations_total",
			Help:      "Successful event unregistrations",
		},
	)

	// ImportRowsTotal counts bulk import rows by outcome:
	// successful, failed, invalid_email, existing_user.
	ImportRowsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Bulk member import rows by outcome",
		},
		[]string{"outcome"},
	)

	// InvitationsTotal counts invitation transitions by resulting status.
	InvitationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitations_total",
			Help:      "Invitation lifecycle transitions by status",
		},
		[]string{"status"},
	)

	// EmailsTotal counts processed email jobs by type and status.
	EmailsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Notification emails by type and delivery status",
		},
		[]string{"type", "status"},
	)

	// EventsPurgedTotal counts events removed by the expired-event purge.
	EventsPurgedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_purged_total",
			Help:      "Expired events deleted by the purge job",
		},
	)

	// WebsocketClients tracks connected live-stats sockets.
	WebsocketClients = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live event stats websocket clients",
		},
	)
)

// Init registers the Go runtime and process collectors. Call once per process.
func Init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
