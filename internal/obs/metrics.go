package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_logins_total",
			Help: "Authentication decisions by path and result.",
		},
		[]string{"path", "result"},
	)

	identitiesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_identities_created_total",
			Help: "Identities provisioned, by auth kind.",
		},
		[]string{"auth_kind"},
	)

	directoryProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_directory_provisions_total",
			Help: "Lazy directory provisioning outcomes.",
		},
		[]string{"outcome"},
	)

	tokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeep_tokens_issued_total",
		Help: "Session tokens issued or re-issued.",
	})

	tokenVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_token_verifications_total",
			Help: "Token verification checks by result.",
		},
		[]string{"result"},
	)

	tokensInvalidatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeep_tokens_invalidated_total",
		Help: "Session tokens explicitly invalidated.",
	})

	permissionGrantsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeep_permission_grants_total",
		Help: "Permission grants attached to identities.",
	})
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		loginsTotal,
		identitiesCreatedTotal,
		directoryProvisionsTotal,
		tokensIssuedTotal,
		tokenVerificationsTotal,
		tokensInvalidatedTotal,
		permissionGrantsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint for embedding services.
func Handler() http.Handler {
	return promhttp.Handler()
}

// LoginResult records an authentication decision. path is "local" or
// "directory"; result is "ok", "denied" or "error".
func LoginResult(path, result string) {
	loginsTotal.WithLabelValues(path, result).Inc()
}

// IdentityCreated records a provisioned identity.
func IdentityCreated(authKind string) {
	identitiesCreatedTotal.WithLabelValues(authKind).Inc()
}

// DirectoryProvisioned records a lazy provisioning outcome, "created" or
// "raced".
func DirectoryProvisioned(outcome string) {
	directoryProvisionsTotal.WithLabelValues(outcome).Inc()
}

// TokenIssued records a token issuance.
func TokenIssued() {
	tokensIssuedTotal.Inc()
}

// TokenVerified records a verification check.
func TokenVerified(ok bool) {
	result := "denied"
	if ok {
		result = "ok"
	}
	tokenVerificationsTotal.WithLabelValues(result).Inc()
}

// TokenInvalidated records an explicit invalidation.
func TokenInvalidated() {
	tokensInvalidatedTotal.Inc()
}

// PermissionsGranted records n permission attachments.
func PermissionsGranted(n int) {
	if n > 0 {
		permissionGrantsTotal.Add(float64(n))
	}
}
