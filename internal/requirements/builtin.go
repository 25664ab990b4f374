package requirements

import "github.com/jandubois/probecheck/internal/check"

// DefaultWebhookURL is where probes export results unless PX_WEBHOOK_URL
// says otherwise.
const DefaultWebhookURL = "http://kernel-gossip-operator:8080/webhook/pixie"

var (
	flagUsesConfig = check.Flag{Name: "uses_config", Description: "must use external configuration"}
	flagSeverity   = check.Flag{Name: "has_severity", Description: "must compute severity levels"}
)

var baseColumns = []string{"timestamp", "cluster", "pod_name", "namespace"}

func columns(extra ...string) []string {
	cols := make([]string, 0, len(baseColumns)+len(extra))
	cols = append(cols, baseColumns...)
	return append(cols, extra...)
}

// Builtin returns a catalog with the known probe types.
func Builtin() *Catalog {
	c := NewCatalog()
	for _, r := range builtins() {
		if err := c.Register(r); err != nil {
			panic(err)
		}
	}
	return c
}

func builtins() []Requirement {
	return []Requirement{
		{
			Name: "cpu_throttle_detector",
			Markers: []string{
				"def cpu_throttle_detector():",
				"WEBHOOK_URL",
				"THROTTLE_THRESHOLD",
				"df.cpu_throttled_pct",
				"px.export",
			},
			Columns: columns("cpu_usage_pct", "cpu_throttled_pct", "severity"),
			Flags:   []check.Flag{flagUsesConfig, flagSeverity},
			Env: map[string]string{
				"PX_WEBHOOK_URL": DefaultWebhookURL,
			},
		},
		{
			Name: "memory_pressure_monitor",
			Markers: []string{
				"def memory_pressure_monitor():",
				"WEBHOOK_URL",
				"px.export",
			},
			Columns: columns(
				"memory_usage_pct", "memory_limit_mb", "memory_used_mb",
				"page_faults_per_sec", "severity",
			),
			Flags: []check.Flag{
				flagUsesConfig,
				flagSeverity,
				{Name: "detects_pressure", Description: "must detect memory pressure conditions"},
			},
			Env: map[string]string{
				"PX_WEBHOOK_URL":               DefaultWebhookURL,
				"PX_MEMORY_PRESSURE_THRESHOLD": "70.0",
				"PX_WARNING_THRESHOLD":         "80.0",
				"PX_CRITICAL_THRESHOLD":        "90.0",
			},
		},
		{
			Name: "network_issue_finder",
			Markers: []string{
				"def network_issue_finder():",
				"WEBHOOK_URL",
				"px.export",
			},
			Columns: columns(
				"packet_drop_pct", "retransmit_pct", "avg_latency_ms",
				"connection_errors", "severity",
			),
			Flags: []check.Flag{
				flagUsesConfig,
				flagSeverity,
				{Name: "detects_network_issues", Description: "must detect network issues (drops, retransmits, latency)"},
			},
			Env: map[string]string{
				"PX_WEBHOOK_URL":           DefaultWebhookURL,
				"PX_PACKET_DROP_THRESHOLD": "1.0",
				"PX_RETRANSMIT_THRESHOLD":  "5.0",
				"PX_LATENCY_THRESHOLD_MS":  "100",
			},
		},
		{
			Name: "pod_creation_trace",
			Markers: []string{
				"def pod_creation_trace():",
				"WEBHOOK_URL",
				"syscall_counts",
				"namespace_events",
				"cgroup_events",
				"px.export",
			},
			Env: map[string]string{
				"PX_WEBHOOK_URL": DefaultWebhookURL,
			},
		},
	}
}
