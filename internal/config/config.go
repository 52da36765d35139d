// Package config loads the process-wide simulation configuration.
//
// Every option has a default (spec.md §6); Load reads an optional YAML
// file and environment overrides on top of those defaults, the way
// firestige-Otus's internal/config package layers viper over a typed
// struct.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Simulation is the top-level, process-wide configuration object. It is
// the only contract the core subsystems have with the outside world
// (spec.md §1): everything else — CLI parsing, file I/O, plotting — is
// an external collaborator that produces or consumes this struct.
type Simulation struct {
	Rates     RatesConfig     `mapstructure:"rates"`
	Topology  TopologyConfig  `mapstructure:"topology"`
	LB        LBConfig        `mapstructure:"load_balancer"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// RatesConfig controls step sizing and per-flow rate dynamics (spec.md §4.E).
type RatesConfig struct {
	StepSize            float64 `mapstructure:"step_size"`
	AdaptiveStep        bool    `mapstructure:"adaptive_step"`
	AdaptiveMin         float64 `mapstructure:"adaptive_min"`
	AdaptiveMax         float64 `mapstructure:"adaptive_max"`
	RateIncrease        float64 `mapstructure:"rate_increase"`
	InitialRate         float64 `mapstructure:"initial_rate"`
	MinRate             float64 `mapstructure:"min_rate"`
	RateDecreaseFactor  float64 `mapstructure:"rate_decrease_factor"`
	LinkBandwidth       float64 `mapstructure:"link_bandwidth"`
	CoreStatusProfiling int     `mapstructure:"core_status_profiling_interval"`
}

// TopologyConfig selects and dimensions the fabric (spec.md §4.B).
type TopologyConfig struct {
	MachineCount     int    `mapstructure:"machine_count"`
	Kind             string `mapstructure:"kind"` // fattree | leafspine | bigswitch
	ServersPerRack   int    `mapstructure:"ft_servers_per_rack"`
	RacksPerPod      int    `mapstructure:"ft_racks_per_pod"`
	AggsPerPod       int    `mapstructure:"ft_aggs_per_pod"`
	PodCount         int    `mapstructure:"ft_pod_count"`
	CoreCount        int    `mapstructure:"ft_core_count"`
	ServerTorMult    float64 `mapstructure:"ft_server_tor_capacity_mult"`
	TorAggMult       float64 `mapstructure:"ft_tor_agg_capacity_mult"`
	AggCoreMult      float64 `mapstructure:"ft_agg_core_capacity_mult"`
	ShuffleDeviceMap bool    `mapstructure:"shuffle_device_map"`
	ShuffleMapFile   string  `mapstructure:"shuffle_map_file"`
}

// LBConfig selects the load-balancing policy (spec.md §4.C).
type LBConfig struct {
	Scheme     string `mapstructure:"scheme"` // random|roundrobin|powerofk|leastloaded|robinhood|futureload
	Samples    int    `mapstructure:"samples"`
	LoadMetric string `mapstructure:"load_metric"` // registered|allocated|utilization|flowsize|flowcount
	Seed       int64  `mapstructure:"seed"`
}

// AllocatorConfig selects the bandwidth-allocation discipline (spec.md §4.A).
type AllocatorConfig struct {
	Kind                   string  `mapstructure:"kind"` // fairshare|maxmin|fixedpriority|priorityqueue
	PriorityLevels         int     `mapstructure:"priority_levels"`
	PunishOversubscribed   bool    `mapstructure:"punish_oversubscribed"`
	PunishOversubscribedMin float64 `mapstructure:"punish_oversubscribed_min"`
}

// ProtocolConfig governs protocol loading (spec.md §6).
type ProtocolConfig struct {
	FileDir      string `mapstructure:"file_dir"`
	FileName     string `mapstructure:"file_name"`
	RepCount     int    `mapstructure:"rep_count"`
	IsolateJobID int    `mapstructure:"isolate_job_id"`
}

// OutputConfig governs run artifacts (spec.md §6).
type OutputConfig struct {
	Dir                string `mapstructure:"dir"`
	RecordLinkHistory  bool   `mapstructure:"record_link_history"`
	RecordFlowHistory  bool   `mapstructure:"record_flow_history"`
	PlotGraphs         bool   `mapstructure:"plot_graphs"`
	ExportDot          bool   `mapstructure:"export_dot"`
	PlacementFile      string `mapstructure:"placement_file"`
	TimingFile         string `mapstructure:"timing_file"`
	RoutingFile        string `mapstructure:"routing_file"`
	EventsNatsURL      string `mapstructure:"events_nats_url"`      // empty disables rep-progress events
	EventsSubjectPrefix string `mapstructure:"events_subject_prefix"`
}

// LoggingConfig governs the ambient logging stack.
type LoggingConfig struct {
	ConsoleLevel string `mapstructure:"console_level"`
	FileLevel    string `mapstructure:"file_level"`
	FileName     string `mapstructure:"file_name"`
}

// SchedulerConfig governs the offline scheduler H (spec.md §4.H).
type SchedulerConfig struct {
	Subflows        int     `mapstructure:"subflows"`
	ThrottleFactor  float64 `mapstructure:"throttle_factor"`
	MaxFixingRounds int     `mapstructure:"max_fixing_rounds"`
	RegretMode      bool    `mapstructure:"regret_mode"`
	PlacementSeed   int64   `mapstructure:"placement_seed"`
}

// Load reads configuration from an optional YAML file plus environment
// overrides (PSIM_ prefix), layered over the defaults below, and
// validates the result.
func Load(path string) (*Simulation, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Simulation
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rates.step_size", 100.0)
	v.SetDefault("rates.adaptive_step", false)
	v.SetDefault("rates.adaptive_min", 1.0)
	v.SetDefault("rates.adaptive_max", 1000.0)
	v.SetDefault("rates.rate_increase", 1.2)
	v.SetDefault("rates.initial_rate", 10.0)
	v.SetDefault("rates.min_rate", 0.01)
	v.SetDefault("rates.rate_decrease_factor", 0.5)
	v.SetDefault("rates.link_bandwidth", 100.0)
	v.SetDefault("rates.core_status_profiling_interval", 100)

	v.SetDefault("topology.machine_count", 8)
	v.SetDefault("topology.kind", "fattree")
	v.SetDefault("topology.ft_servers_per_rack", 2)
	v.SetDefault("topology.ft_racks_per_pod", 2)
	v.SetDefault("topology.ft_aggs_per_pod", 2)
	v.SetDefault("topology.ft_pod_count", 2)
	v.SetDefault("topology.ft_core_count", 2)
	v.SetDefault("topology.ft_server_tor_capacity_mult", 1.0)
	v.SetDefault("topology.ft_tor_agg_capacity_mult", 1.0)
	v.SetDefault("topology.ft_agg_core_capacity_mult", 1.0)

	v.SetDefault("load_balancer.scheme", "roundrobin")
	v.SetDefault("load_balancer.samples", 2)
	v.SetDefault("load_balancer.load_metric", "registered")

	v.SetDefault("allocator.kind", "fairshare")
	v.SetDefault("allocator.priority_levels", 4)
	v.SetDefault("allocator.punish_oversubscribed", false)
	v.SetDefault("allocator.punish_oversubscribed_min", 0.0)

	v.SetDefault("protocol.rep_count", 1)
	v.SetDefault("protocol.isolate_job_id", -1)

	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.events_subject_prefix", "psim")

	v.SetDefault("logging.console_level", "info")
	v.SetDefault("logging.file_level", "debug")
	v.SetDefault("logging.file_name", "psim.log")

	v.SetDefault("scheduler.subflows", 4)
	v.SetDefault("scheduler.throttle_factor", 1.0)
	v.SetDefault("scheduler.max_fixing_rounds", 4)
	v.SetDefault("scheduler.placement_seed", 1)
}

// Validate checks configuration-error conditions that must be caught at
// startup (spec.md §7): unknown policy names and fat-tree dimension
// constraints.
func (c *Simulation) Validate() error {
	switch c.Topology.Kind {
	case "fattree", "leafspine", "bigswitch":
	default:
		return fmt.Errorf("unknown topology kind %q", c.Topology.Kind)
	}

	switch c.LB.Scheme {
	case "random", "roundrobin", "powerofk", "leastloaded", "robinhood", "futureload":
	default:
		return fmt.Errorf("unknown load balancer scheme %q", c.LB.Scheme)
	}

	switch c.Allocator.Kind {
	case "fairshare", "maxmin", "fixedpriority", "priorityqueue":
	default:
		return fmt.Errorf("unknown allocator kind %q", c.Allocator.Kind)
	}

	if c.Topology.Kind == "fattree" || c.Topology.Kind == "leafspine" {
		s, r, p := c.Topology.ServersPerRack, c.Topology.RacksPerPod, c.Topology.PodCount
		if s <= 0 || r <= 0 || p <= 0 {
			return fmt.Errorf("fat-tree dimensions must be positive: s=%d r=%d p=%d", s, r, p)
		}
		if c.Topology.MachineCount != s*r*p {
			return fmt.Errorf("machine_count (%d) must equal servers_per_rack*racks_per_pod*pod_count (%d)",
				c.Topology.MachineCount, s*r*p)
		}
		if c.Topology.AggsPerPod > 0 && c.Topology.CoreCount%c.Topology.AggsPerPod != 0 {
			return fmt.Errorf("core_count (%d) must be a multiple of aggs_per_pod (%d)",
				c.Topology.CoreCount, c.Topology.AggsPerPod)
		}
	}

	return nil
}
