package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricAuthorizeSuccess, Name: "authcore_authorize_success_total", Help: "Authorization codes issued."},
	{ID: authcore.MetricAuthorizeInvalid, Name: "authcore_authorize_invalid_total", Help: "Authorize requests rejected for invalid parameters."},
	{ID: authcore.MetricAuthorizeLoginRequired, Name: "authcore_authorize_login_required_total", Help: "Authorize requests without a usable session."},
	{ID: authcore.MetricTokenExchangeSuccess, Name: "authcore_token_exchange_success_total", Help: "Authorization codes exchanged for tokens."},
	{ID: authcore.MetricTokenExchangeFailure, Name: "authcore_token_exchange_failure_total", Help: "Failed token exchanges."},
	{ID: authcore.MetricCodeReplay, Name: "authcore_code_replay_total", Help: "Already redeemed authorization codes presented again."},
	{ID: authcore.MetricPKCEMismatch, Name: "authcore_pkce_mismatch_total", Help: "Token exchanges with a verifier that did not match the challenge."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed password logins."},
	{ID: authcore.MetricAuthenticateSuccess, Name: "authcore_authenticate_success_total", Help: "Access tokens accepted."},
	{ID: authcore.MetricAuthenticateFailure, Name: "authcore_authenticate_failure_total", Help: "Access tokens rejected."},
	{ID: authcore.MetricRevokedTokenRejected, Name: "authcore_revoked_token_rejected_total", Help: "Access tokens rejected because they were revoked."},
	{ID: authcore.MetricRateLimitHit, Name: "authcore_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authcore.MetricBackendError, Name: "authcore_backend_error_total", Help: "Store or limiter backend failures."},
	{ID: authcore.MetricFailOpen, Name: "authcore_fail_open_total", Help: "Requests admitted by a fail-open policy during a backend failure."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthenticateLatency, Name: "authcore_authenticate_latency_seconds", Help: "Access token authentication latency."},
	{ID: authcore.MetricTokenExchangeLatency, Name: "authcore_token_exchange_latency_seconds", Help: "Authorization code exchange latency."},
}

// AuditDroppedName is the counter exported for audit events lost to
// dispatcher backpressure.
const (
	AuditDroppedName = "authcore_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBoundSuffix names each bucket for exporters that cannot carry
// an le label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
