package agent

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"signald/internal/event"
)

// failureKind groups scenarios by the class of failure they simulate.
type failureKind string

const (
	kindDatabase    failureKind = "database"
	kindNetwork     failureKind = "network"
	kindResource    failureKind = "resource"
	kindSecurity    failureKind = "security"
	kindService     failureKind = "service"
	kindIntegration failureKind = "integration"
)

// scenario is a template for generating failure events.
type scenario struct {
	id           string
	kind         failureKind
	baseSeverity string
	servicePool  []string
	templates    []string
	weight       float64
}

// Realistic service topology split by tier.
var servicePools = map[string][]string{
	"data":     {"user-db", "order-db", "analytics-db", "cache-redis", "search-elastic"},
	"api":      {"user-api", "order-api", "payment-api", "notification-api", "auth-service"},
	"infra":    {"load-balancer", "api-gateway", "message-queue", "file-storage", "cdn"},
	"external": {"payment-processor", "email-service", "sms-gateway", "monitoring-api"},
}

func buildScenarios() []scenario {
	return []scenario{
		{
			id:           "db_connection_pool",
			kind:         kindDatabase,
			baseSeverity: event.SeverityCritical,
			servicePool:  servicePools["data"],
			templates: []string{
				"Connection pool exhausted - %d active of %d max connections",
				"Database connection timeout after %dms - pool saturated",
				"Connection leak detected - %d unclosed connections",
			},
			weight: 2.5,
		},
		{
			id:           "db_performance",
			kind:         kindDatabase,
			baseSeverity: event.SeverityWarning,
			servicePool:  servicePools["data"],
			templates: []string{
				"Query execution time %dms exceeds threshold %dms",
				"Slow query on table '%s' - scanning %d rows",
				"Lock contention detected - %d blocked transactions",
			},
			weight: 2.0,
		},
		{
			id:           "service_connectivity",
			kind:         kindNetwork,
			baseSeverity: event.SeverityCritical,
			servicePool:  concat(servicePools["api"], servicePools["external"]),
			templates: []string{
				"Service %s unreachable - %d consecutive failures",
				"Circuit breaker opened for %s after %d%% error rate",
				"Upstream timeout from %s - %dms exceeded",
			},
			weight: 2.2,
		},
		{
			id:           "resource_exhaustion",
			kind:         kindResource,
			baseSeverity: event.SeverityWarning,
			servicePool:  concat(servicePools["api"], servicePools["infra"]),
			templates: []string{
				"Memory usage critical - %d%% of %d GB allocated",
				"CPU throttling active - %d%% sustained load",
				"Rate limit exceeded - %d req/sec over %d limit",
			},
			weight: 1.8,
		},
		{
			id:           "security_events",
			kind:         kindSecurity,
			baseSeverity: event.SeverityCritical,
			servicePool:  servicePools["api"],
			templates: []string{
				"Authentication failure spike - %d%% increase from %s",
				"Suspicious activity detected - %d failed logins from %s",
				"Rate limiting aggressive requests - %d attempts blocked",
			},
			weight: 1.3,
		},
		{
			id:           "application_errors",
			kind:         kindService,
			baseSeverity: event.SeverityWarning,
			servicePool:  servicePools["api"],
			templates: []string{
				"Unhandled exception rate elevated - %d errors/min",
				"Health check failures for %d consecutive attempts",
				"Service degradation - %d%% success rate",
			},
			weight: 2.0,
		},
		{
			id:           "integration_issues",
			kind:         kindIntegration,
			baseSeverity: event.SeverityWarning,
			servicePool:  concat(servicePools["external"], servicePools["infra"]),
			templates: []string{
				"External service %s returning HTTP %d errors",
				"Message queue capacity warning - %d%% full",
				"Webhook delivery failures - %d retries exhausted",
			},
			weight: 1.5,
		},
	}
}

// Generator produces realistic failure events from a weighted scenario
// library. Not safe for concurrent use.
type Generator struct {
	scenarios []scenario
	rng       *rand.Rand
	counter   int
	now       func() time.Time
}

// NewGenerator creates a generator seeded from the given source. A zero seed
// falls back to the current time.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		scenarios: buildScenarios(),
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}
}

// Generate produces one failure event.
func (g *Generator) Generate() *event.FailureEvent {
	sc := g.pick()
	g.counter++

	now := g.now()
	eventID := fmt.Sprintf("%s_%04d_%s", sc.id, g.counter, now.Format("20060102_150405.000"))
	eventID = strings.ReplaceAll(eventID, ".", "_")

	// Events mostly fire at the current instant with an occasional lag.
	offsets := []int{0, 0, 0, 0, 15, 30, 120}
	offset := time.Duration(offsets[g.rng.Intn(len(offsets))]) * time.Second
	timestamp := now.Add(-offset).UTC().Format(time.RFC3339)

	service := sc.servicePool[g.rng.Intn(len(sc.servicePool))]
	severity := g.escalate(sc)
	message := g.formatMessage(sc.templates[g.rng.Intn(len(sc.templates))], sc)

	return &event.FailureEvent{
		EventID:   eventID,
		Timestamp: timestamp,
		Service:   service,
		Severity:  severity,
		Message:   message,
		Details:   g.buildDetails(sc, now),
	}
}

// pick selects a scenario by weight, adjusted for time-of-day patterns.
func (g *Generator) pick() scenario {
	hour := g.now().Hour()
	business := hour >= 9 && hour <= 17

	weights := make([]float64, len(g.scenarios))
	var total float64
	for i, sc := range g.scenarios {
		w := sc.weight
		switch {
		case business && (sc.kind == kindDatabase || sc.kind == kindResource):
			w *= 1.5
		case !business && sc.kind == kindSecurity:
			w *= 1.8
		}
		weights[i] = w
		total += w
	}

	val := g.rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if val <= cumulative {
			return g.scenarios[i]
		}
	}
	return g.scenarios[0]
}

// escalate bumps the base severity 15% of the time. Database and security
// warnings go critical, info goes warning.
func (g *Generator) escalate(sc scenario) string {
	severity := sc.baseSeverity
	if g.rng.Float64() >= 0.15 {
		return severity
	}
	switch {
	case severity == event.SeverityWarning && (sc.kind == kindDatabase || sc.kind == kindSecurity):
		return event.SeverityCritical
	case severity == event.SeverityInfo:
		return event.SeverityWarning
	}
	return severity
}

func (g *Generator) formatMessage(template string, sc scenario) string {
	var args []any

	switch sc.kind {
	case kindDatabase:
		pool := []any{
			g.rng.Intn(86) + 15,
			g.rng.Intn(81) + 20,
			g.rng.Intn(7501) + 500,
			pickString(g.rng, "users", "orders", "sessions", "products"),
		}
		args = fillArgs(template, pool)
	case kindNetwork:
		pool := []any{
			pickString(g.rng, "payment-api", "user-service", "auth-gateway"),
			g.rng.Intn(8) + 3,
			g.rng.Intn(29001) + 1000,
			g.rng.Intn(71) + 15,
		}
		args = fillArgs(template, pool)
	case kindSecurity:
		pool := []any{
			g.rng.Intn(71) + 15,
			fmt.Sprintf("192.168.%d.%d", g.rng.Intn(255)+1, g.rng.Intn(255)+1),
			g.rng.Intn(451) + 50,
			pickString(g.rng, "10.0.0.0/8", "suspicious-host.com"),
		}
		args = fillArgs(template, pool)
	default:
		pool := []any{
			g.rng.Intn(21) + 75,
			g.rng.Intn(29) + 4,
			g.rng.Intn(1901) + 100,
			g.rng.Intn(801) + 200,
		}
		args = fillArgs(template, pool)
	}

	return fmt.Sprintf(template, args...)
}

// fillArgs matches the pool values to the template's verbs in order,
// coercing between string and int where the verb demands it.
func fillArgs(template string, pool []any) []any {
	verbs := templateVerbs(template)
	args := make([]any, 0, len(verbs))
	for i, verb := range verbs {
		v := pool[i%len(pool)]
		switch verb {
		case 's':
			if _, ok := v.(string); !ok {
				v = fmt.Sprintf("%v", v)
			}
		case 'd':
			if _, ok := v.(int); !ok {
				v = 0
			}
		}
		args = append(args, v)
	}
	return args
}

// templateVerbs extracts the printf verbs from a format string, skipping
// literal %% pairs.
func templateVerbs(template string) []byte {
	var verbs []byte
	for i := 0; i < len(template)-1; i++ {
		if template[i] != '%' {
			continue
		}
		switch template[i+1] {
		case '%':
			i++
		case 's', 'd':
			verbs = append(verbs, template[i+1])
			i++
		}
	}
	return verbs
}

func (g *Generator) buildDetails(sc scenario, now time.Time) map[string]any {
	hour := now.Hour()
	weekday := now.Weekday()

	timeContext := "off_hours"
	switch {
	case weekday == time.Saturday || weekday == time.Sunday:
		timeContext = "weekend"
	case hour >= 9 && hour <= 17:
		timeContext = "business_hours"
	}

	details := map[string]any{
		"scenario_type":    sc.id,
		"failure_category": string(sc.kind),
		"generated_at":     now.Format(time.RFC3339),
		"time_context":     timeContext,
		"correlation_id":   "req_" + uuid.NewString()[:8],
	}

	switch sc.kind {
	case kindDatabase:
		details["database_type"] = pickString(g.rng, "PostgreSQL", "MySQL", "MongoDB", "Redis")
		details["connection_pool_size"] = []int{10, 20, 50, 100}[g.rng.Intn(4)]
		details["active_connections"] = g.rng.Intn(146) + 5
		details["query_time_ms"] = g.rng.Intn(9901) + 100
	case kindNetwork:
		details["response_time_ms"] = g.rng.Intn(29001) + 1000
		details["retry_attempts"] = g.rng.Intn(5) + 1
		details["error_code"] = pickString(g.rng, "CONN_REFUSED", "TIMEOUT", "DNS_FAILURE", "SSL_ERROR")
	case kindResource:
		details["memory_used_gb"] = round2(g.rng.Float64()*15 + 1)
		details["memory_total_gb"] = []int{2, 4, 8, 16, 32}[g.rng.Intn(5)]
		details["cpu_percent"] = round1(g.rng.Float64()*20 + 75)
	case kindSecurity:
		ips := make([]string, g.rng.Intn(3)+1)
		for i := range ips {
			ips[i] = fmt.Sprintf("192.168.%d.%d", g.rng.Intn(255)+1, g.rng.Intn(255)+1)
		}
		details["source_ips"] = ips
		details["failed_attempts"] = g.rng.Intn(491) + 10
		details["auth_method"] = pickString(g.rng, "password", "token", "oauth", "api_key")
	}

	details["affected_users"] = []int{40, 120, 400, 1200, 4000}[g.rng.Intn(5)] * (g.rng.Intn(2) + 1)
	details["error_rate_percent"] = round2(g.rng.Float64()*24.5 + 0.5)
	details["response_time_p95_ms"] = g.rng.Intn(4901) + 100

	return details
}

func pickString(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }

func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }
