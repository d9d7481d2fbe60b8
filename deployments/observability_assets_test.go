package deployments

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Record string            `yaml:"record"`
			Alert  string            `yaml:"alert"`
			Expr   string            `yaml:"expr"`
			Labels map[string]string `yaml:"labels"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var seriesPattern = regexp.MustCompile(`\baskhr[_:][a-z0-9_:]+`)

func loadRules(t *testing.T) ruleFile {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(repoRoot(t), "deployments", "observability", "prometheus", "askhr_rules.yaml"))
	if err != nil {
		t.Fatalf("read rules file: %v", err)
	}
	var rules ruleFile
	if err := yaml.Unmarshal(content, &rules); err != nil {
		t.Fatalf("rules YAML parse error: %v", err)
	}
	if len(rules.Groups) == 0 {
		t.Fatal("rules file must define at least one group")
	}
	return rules
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	rules := loadRules(t)

	alerts := map[string]map[string]string{}
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			if rule.Alert != "" {
				alerts[rule.Alert] = rule.Labels
			}
		}
	}
	for _, name := range []string{
		"AskHRHTTPErrorRateHigh",
		"AskHRModelLatencyP95High",
		"AskHRModelFallbacksDetected",
		"AskHRQueryExecutionFailures",
		"AskHRChatFailuresDetected",
	} {
		labels, ok := alerts[name]
		if !ok {
			t.Fatalf("rules missing alert %q", name)
		}
		if labels["severity"] != "critical" && labels["severity"] != "warning" {
			t.Fatalf("alert %q has severity %q", name, labels["severity"])
		}
	}
}

// Every series an expression reads must be either an exported askhr_ metric or a record
// defined in the same file.
func TestPrometheusRulesReferenceKnownSeries(t *testing.T) {
	rules := loadRules(t)

	exported := map[string]bool{
		"askhr_http_requests_total":           true,
		"askhr_http_request_duration_seconds": true,
		"askhr_route_decisions_total":         true,
		"askhr_model_call_latency_ms_bucket":  true,
		"askhr_model_errors_total":            true,
		"askhr_model_fallbacks_total":         true,
		"askhr_queries_total":                 true,
		"askhr_query_duration_ms_bucket":      true,
		"askhr_chat_replies_total":            true,
	}
	recorded := map[string]bool{}
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			if rule.Record != "" {
				recorded[rule.Record] = true
			}
		}
	}

	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			if strings.TrimSpace(rule.Expr) == "" {
				t.Fatalf("rule %q%q has an empty expression", rule.Record, rule.Alert)
			}
			for _, series := range seriesPattern.FindAllString(rule.Expr, -1) {
				if !exported[series] && !recorded[series] {
					t.Fatalf("rule %q%q references unknown series %q", rule.Record, rule.Alert, series)
				}
			}
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	content, err := os.ReadFile(filepath.Join(repoRoot(t), "deployments", "observability", "prometheus", "prometheus-scrape.example.yaml"))
	if err != nil {
		t.Fatalf("read scrape example: %v", err)
	}
	text := string(content)

	for _, token := range []string{"metrics_path: /v1/metrics", "askhr_rules.yaml", "job_name: askhr-api"} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
