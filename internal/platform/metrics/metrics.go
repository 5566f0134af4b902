package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersCreated    prometheus.Counter
	UsersUpdated    prometheus.Counter
	UsersDeleted    prometheus.Counter
	DuplicateFields *prometheus.CounterVec
	ResetsSucceeded prometheus.Counter
	ResetsRejected  *prometheus.CounterVec
	ResetsPartial   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_users_created_total",
			Help: "Total number of user records created.",
		}),
		UsersUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_users_updated_total",
			Help: "Total number of user records updated.",
		}),
		UsersDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_users_deleted_total",
			Help: "Total number of user records deleted.",
		}),
		DuplicateFields: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registra_duplicate_field_rejections_total",
			Help: "Writes rejected by the uniqueness index, by field.",
		}, []string{"field"}),
		ResetsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_password_resets_total",
			Help: "Total number of successful credential resets.",
		}),
		ResetsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registra_password_reset_rejections_total",
			Help: "Credential resets rejected before any write, by reason.",
		}, []string{"reason"}),
		ResetsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_password_resets_partial_total",
			Help: "Resets where the credential committed but bookkeeping failed.",
		}),
	}
}
