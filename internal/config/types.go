package config

// Config is the process-wide gateway configuration. It is read once at
// startup and must not be mutated afterwards: subordinate services only
// ever see it read-only.
type Config struct {
	// General holds general configuration.
	General *GeneralConfig `toml:"general" json:"general" validate:"required"`
	// DNS holds DNS monitor configuration.
	DNS *DNSConfig `toml:"dns" json:"dns" validate:"required"`
	// Proxy holds transparent proxy configuration.
	Proxy *ProxyConfig `toml:"proxy" json:"proxy" validate:"required"`
	// API holds control-plane API configuration.
	API *APIConfig `toml:"api" json:"api" validate:"required"`
	// Firewall holds interception rule configuration.
	Firewall *FirewallConfig `toml:"firewall" json:"firewall" validate:"required"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// DataDir is the directory for persistent gateway state (default: /var/lib/hearthgate).
	DataDir string `toml:"data_dir" json:"data_dir" validate:"required"`
	// LogsDir is the directory for append-only log files (default: /var/log/hearthgate).
	LogsDir string `toml:"logs_dir" json:"logs_dir" validate:"required"`
	// LogLevel is the log verbosity: "debug" or "info" (default: info).
	LogLevel string `toml:"log_level" json:"log_level" validate:"oneof=debug info"`
}

type DNSConfig struct {
	// Port is the port the DNS monitor binds to on 0.0.0.0, UDP and TCP (default: 53).
	Port uint16 `toml:"port" json:"port" validate:"required,min=1"`
	// Upstream is the upstream resolver address, with optional port (default: 8.8.8.8).
	Upstream string `toml:"upstream" json:"upstream" validate:"required"`
	// CacheMaxEntries is the maximum number of cached DNS responses (default: 1000).
	CacheMaxEntries int `toml:"cache_max_entries" json:"cache_max_entries" validate:"min=0"`
	// QueryLogFile is the query log file name inside LogsDir (default: dns.log).
	QueryLogFile string `toml:"query_log_file" json:"query_log_file" validate:"required"`
}

type ProxyConfig struct {
	// Port is the local port interception rules redirect HTTP/HTTPS traffic to (default: 8080).
	Port uint16 `toml:"port" json:"port" validate:"required,min=1"`
	// DialTimeoutSeconds is the timeout for dialing the original destination (default: 10).
	DialTimeoutSeconds int `toml:"dial_timeout_seconds" json:"dial_timeout_seconds" validate:"min=1"`
}

type APIConfig struct {
	// Port is the port the control-plane API binds to (default: 8000).
	Port uint16 `toml:"port" json:"port" validate:"required,min=1"`
}

type FirewallConfig struct {
	// FwMark is the connection mark applied to classified connections (default: 1).
	// A mark of this value means "already classified, do not re-intercept".
	FwMark uint32 `toml:"fwmark" json:"fwmark" validate:"required,min=1"`
	// RouteTable is the routing table marked packets are directed to (default: 100).
	RouteTable int `toml:"table" json:"table" validate:"required,min=1"`
	// RulePriority is the ip rule priority for the fwmark rule (default: 100).
	RulePriority int `toml:"priority" json:"priority" validate:"required,min=1"`
	// ExtraRules are additional operator-supplied iptables rules, applied after the
	// built-in interception rules. Available variables: {{proxy_port}}, {{fwmark}},
	// {{table}}, {{priority}}.
	ExtraRules []*RuleTemplate `toml:"extra_rule,omitempty" json:"extra_rule,omitempty" validate:"dive"`
}

// RuleTemplate is a templated iptables rule from the configuration file.
type RuleTemplate struct {
	Table string   `toml:"table" json:"table" validate:"required,oneof=mangle nat filter"`
	Chain string   `toml:"chain" json:"chain" validate:"required"`
	Rule  []string `toml:"rule" json:"rule" validate:"required,min=1"`
}
