package resolution

import "github.com/observa-labs/traffic-sentinel/internal/models"

// defaultCatalog returns the compiled-in remediation catalog. Anomaly-type
// keys carry per-severity tiers; root-cause keys carry a single tier reached
// through severity fallback.
func defaultCatalog() map[string]map[models.Severity][]models.Suggestion {
	return map[string]map[models.Severity][]models.Suggestion{
		string(models.AnomalyLatencySpike): {
			models.SeverityCritical: {
				{Category: "IMMEDIATE", Action: "Enable auto-scaling", Detail: "Add 3-5 additional server instances to handle load", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Activate CDN caching", Detail: "Cache static assets and API responses at edge locations", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Enable connection pooling", Detail: "Reuse database connections to reduce overhead", Priority: models.SeverityCritical},
				{Category: "OPTIMIZATION", Action: "Optimize slow queries", Detail: "Add indexes to database tables causing delays", Priority: models.SeverityHigh},
				{Category: "MONITORING", Action: "Set up latency alerts", Detail: "Alert when p95 latency exceeds 500ms", Priority: models.SeverityMedium},
			},
			models.SeverityHigh: {
				{Category: "SCALING", Action: "Scale horizontally", Detail: "Add 2 more server instances to distribute load", Priority: models.SeverityHigh},
				{Category: "CACHING", Action: "Implement Redis caching", Detail: "Cache frequently accessed data for 5 minutes", Priority: models.SeverityHigh},
				{Category: "OPTIMIZATION", Action: "Review N+1 queries", Detail: "Eliminate redundant database calls in ORM", Priority: models.SeverityMedium},
				{Category: "INFRASTRUCTURE", Action: "Upgrade database tier", Detail: "Increase database IOPS and memory allocation", Priority: models.SeverityMedium},
			},
			models.SeverityMedium: {
				{Category: "OPTIMIZATION", Action: "Enable gzip compression", Detail: "Compress API responses to reduce transfer time", Priority: models.SeverityMedium},
				{Category: "CACHING", Action: "Add browser caching headers", Detail: "Cache-Control: max-age=3600 for static assets", Priority: models.SeverityLow},
				{Category: "MONITORING", Action: "Profile slow endpoints", Detail: "Use APM tools to identify bottlenecks", Priority: models.SeverityLow},
			},
		},

		string(models.AnomalyErrorSpike): {
			models.SeverityCritical: {
				{Category: "IMMEDIATE", Action: "Rollback deployment", Detail: "Revert to last known stable version immediately", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Enable circuit breaker", Detail: "Stop cascading failures to downstream services", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Activate backup database", Detail: "Switch to read replica to prevent data corruption", Priority: models.SeverityCritical},
				{Category: "INVESTIGATION", Action: "Analyze error logs", Detail: "Check last 1000 errors for common patterns", Priority: models.SeverityHigh},
				{Category: "COMMUNICATION", Action: "Notify stakeholders", Detail: "Send incident alert to engineering and product teams", Priority: models.SeverityHigh},
			},
			models.SeverityHigh: {
				{Category: "INVESTIGATION", Action: "Check dependency health", Detail: "Verify all external APIs and services are operational", Priority: models.SeverityHigh},
				{Category: "MITIGATION", Action: "Increase retry attempts", Detail: "Retry failed requests with exponential backoff", Priority: models.SeverityHigh},
				{Category: "MONITORING", Action: "Enable detailed logging", Detail: "Log full request/response for failed calls", Priority: models.SeverityMedium},
				{Category: "TESTING", Action: "Run regression tests", Detail: "Execute full test suite to identify broken functionality", Priority: models.SeverityMedium},
			},
			models.SeverityMedium: {
				{Category: "VALIDATION", Action: "Strengthen input validation", Detail: "Add schema validation for all API requests", Priority: models.SeverityMedium},
				{Category: "RESILIENCE", Action: "Implement graceful degradation", Detail: "Return partial data instead of hard failures", Priority: models.SeverityLow},
			},
		},

		string(models.AnomalyTimeout): {
			models.SeverityCritical: {
				{Category: "IMMEDIATE", Action: "Reduce timeout threshold", Detail: "Lower timeout from 30s to 10s to fail fast", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Enable async processing", Detail: "Move long-running tasks to background queue", Priority: models.SeverityCritical},
				{Category: "SCALING", Action: "Scale worker processes", Detail: "Increase application workers from 4 to 12", Priority: models.SeverityHigh},
				{Category: "OPTIMIZATION", Action: "Optimize database queries", Detail: "Add composite indexes for multi-column filters", Priority: models.SeverityHigh},
			},
			models.SeverityHigh: {
				{Category: "ARCHITECTURE", Action: "Implement request queuing", Detail: "Queue requests instead of rejecting them", Priority: models.SeverityHigh},
				{Category: "CACHING", Action: "Cache slow computations", Detail: "Store expensive calculation results for 10 minutes", Priority: models.SeverityMedium},
				{Category: "MONITORING", Action: "Track slow queries", Detail: "Log all queries taking over 1 second", Priority: models.SeverityMedium},
			},
			models.SeverityMedium: {
				{Category: "OPTIMIZATION", Action: "Use connection pooling", Detail: "Reuse database connections to save handshake time", Priority: models.SeverityMedium},
				{Category: "INFRASTRUCTURE", Action: "Upgrade network bandwidth", Detail: "Increase network throughput to reduce latency", Priority: models.SeverityLow},
			},
		},

		string(models.AnomalyTrafficBurst): {
			models.SeverityCritical: {
				{Category: "IMMEDIATE", Action: "Enable rate limiting", Detail: "Limit to 100 requests per minute per IP", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Activate auto-scaling", Detail: "Scale from 2 to 8 instances based on CPU usage", Priority: models.SeverityCritical},
				{Category: "SECURITY", Action: "Check for DDoS attack", Detail: "Analyze traffic patterns for malicious activity", Priority: models.SeverityHigh},
				{Category: "LOAD_BALANCING", Action: "Distribute traffic evenly", Detail: "Use round-robin across all available instances", Priority: models.SeverityHigh},
			},
			models.SeverityHigh: {
				{Category: "CACHING", Action: "Aggressive response caching", Detail: "Cache 90% of read requests for 2 minutes", Priority: models.SeverityHigh},
				{Category: "THROTTLING", Action: "Implement API throttling", Detail: "Queue excess requests instead of dropping", Priority: models.SeverityMedium},
				{Category: "MONITORING", Action: "Set traffic spike alerts", Detail: "Alert when traffic exceeds 150% of baseline", Priority: models.SeverityMedium},
			},
			models.SeverityMedium: {
				{Category: "OPTIMIZATION", Action: "Optimize response size", Detail: "Reduce payload by removing unnecessary fields", Priority: models.SeverityMedium},
				{Category: "INFRASTRUCTURE", Action: "Use CDN for static assets", Detail: "Offload 80% of traffic to edge servers", Priority: models.SeverityLow},
			},
		},

		string(models.AnomalyResourceExhaustion): {
			models.SeverityCritical: {
				{Category: "IMMEDIATE", Action: "Restart application servers", Detail: "Clear memory leaks and release resources", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Limit request payload size", Detail: "Reject requests larger than 10MB", Priority: models.SeverityCritical},
				{Category: "IMMEDIATE", Action: "Enable memory monitoring", Detail: "Kill processes exceeding 80% memory usage", Priority: models.SeverityCritical},
				{Category: "SCALING", Action: "Upgrade server resources", Detail: "Double RAM from 8GB to 16GB per instance", Priority: models.SeverityHigh},
				{Category: "INVESTIGATION", Action: "Profile memory usage", Detail: "Identify memory leaks with heap analysis", Priority: models.SeverityHigh},
			},
			models.SeverityHigh: {
				{Category: "OPTIMIZATION", Action: "Implement streaming", Detail: "Stream large responses instead of buffering", Priority: models.SeverityHigh},
				{Category: "CLEANUP", Action: "Clear old cache entries", Detail: "Purge cache items older than 1 hour", Priority: models.SeverityMedium},
				{Category: "VALIDATION", Action: "Validate file uploads", Detail: "Reject files larger than 5MB", Priority: models.SeverityMedium},
			},
			models.SeverityMedium: {
				{Category: "MONITORING", Action: "Track resource metrics", Detail: "Monitor CPU, memory, and disk usage every minute", Priority: models.SeverityMedium},
				{Category: "OPTIMIZATION", Action: "Use pagination", Detail: "Limit response size to 100 items per page", Priority: models.SeverityLow},
			},
		},

		string(models.CauseLatencyBottleneck): {
			models.SeverityHigh: {
				{Category: "Caching", Action: "Add Redis read-through cache", Detail: "Cache frequently accessed data with TTL to reduce database queries", Priority: models.SeverityHigh},
				{Category: "I/O Optimization", Action: "Enable async I/O", Detail: "Use non-blocking async operations for external API calls and database queries", Priority: models.SeverityHigh},
				{Category: "Database", Action: "Tune DB indexes", Detail: "Add composite indexes on frequently queried columns, analyze slow query logs", Priority: models.SeverityMedium},
				{Category: "Concurrency", Action: "Increase worker concurrency", Detail: "Scale up application workers or enable thread pooling", Priority: models.SeverityMedium},
			},
		},

		string(models.CauseBackendInstability): {
			models.SeverityHigh: {
				{Category: "Debugging", Action: "Inspect error traces", Detail: "Review application logs and stack traces to identify failing code paths", Priority: models.SeverityCritical},
				{Category: "Resilience", Action: "Enable circuit breaker", Detail: "Implement circuit breaker pattern to prevent cascade failures", Priority: models.SeverityHigh},
				{Category: "Deployment", Action: "Rollback recent deploy", Detail: "Revert to last stable version if errors started after recent deployment", Priority: models.SeverityHigh},
				{Category: "Dependency Management", Action: "Isolate failing dependency", Detail: "Identify and quarantine failing external services, add fallback mechanisms", Priority: models.SeverityMedium},
			},
		},

		string(models.CauseTrafficSurge): {
			models.SeverityHigh: {
				{Category: "Rate Limiting", Action: "Apply token-bucket rate limiting", Detail: "Implement per-IP or per-user rate limits with token bucket algorithm", Priority: models.SeverityCritical},
				{Category: "Scaling", Action: "Autoscale pods/instances", Detail: "Enable horizontal pod autoscaling or auto-scaling groups", Priority: models.SeverityHigh},
				{Category: "Caching", Action: "Cache idempotent responses", Detail: "Cache GET responses at CDN or application layer with appropriate TTL", Priority: models.SeverityMedium},
				{Category: "CDN", Action: "Enable CDN edge caching", Detail: "Offload static and cacheable content to CDN", Priority: models.SeverityMedium},
			},
		},

		string(models.CauseAbuseBot): {
			models.SeverityHigh: {
				{Category: "Rate Limiting", Action: "Adaptive rate limits", Detail: "Implement adaptive rate limiting based on user behavior patterns", Priority: models.SeverityCritical},
				{Category: "Security", Action: "IP reputation filtering", Detail: "Block traffic from known malicious IPs using threat intelligence feeds", Priority: models.SeverityHigh},
				{Category: "Authentication", Action: "Auth throttling & CAPTCHA", Detail: "Add progressive delays and CAPTCHA challenges for suspicious login attempts", Priority: models.SeverityHigh},
				{Category: "WAF", Action: "Configure WAF rules", Detail: "Update WAF rules to detect and block bot signatures and scraping patterns", Priority: models.SeverityMedium},
			},
		},

		string(models.CauseSystemOverload): {
			models.SeverityHigh: {
				{Category: "Scaling", Action: "Horizontal scaling", Detail: "Add more application instances/pods to distribute load", Priority: models.SeverityCritical},
				{Category: "Queue Management", Action: "Request queuing", Detail: "Implement request queue with backpressure to prevent resource exhaustion", Priority: models.SeverityHigh},
				{Category: "Graceful Degradation", Action: "Enable graceful degradation", Detail: "Disable non-critical features, serve cached/stale data temporarily", Priority: models.SeverityHigh},
				{Category: "Optimization", Action: "Payload minimization", Detail: "Reduce response payload size, enable compression", Priority: models.SeverityMedium},
			},
		},

		string(models.CauseUnknown): {
			models.SeverityHigh: {
				{Category: "Monitoring", Action: "Enhanced monitoring", Detail: "Enable detailed application metrics and distributed tracing", Priority: models.SeverityHigh},
				{Category: "Analysis", Action: "Manual investigation", Detail: "Review logs, metrics, and user reports to identify anomaly pattern", Priority: models.SeverityMedium},
			},
		},
	}
}
