package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	nats "github.com/nats-io/nats.go"

	"github.com/faridzandi/psim-go/internal/batch"
	"github.com/faridzandi/psim-go/internal/bwalloc"
	"github.com/faridzandi/psim-go/internal/config"
	"github.com/faridzandi/psim-go/internal/loadbalancer"
	"github.com/faridzandi/psim-go/internal/profile"
	"github.com/faridzandi/psim-go/internal/protocol"
	"github.com/faridzandi/psim-go/internal/protoparse"
	"github.com/faridzandi/psim-go/internal/report"
	"github.com/faridzandi/psim-go/internal/runctx"
	"github.com/faridzandi/psim-go/internal/simulator"
	"github.com/faridzandi/psim-go/internal/telemetry"
	"github.com/faridzandi/psim-go/internal/topology"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation rep_count times per configuration",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("psim run: %w", err)
	}

	telemetry.InitLogging("psim")

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("psim run: create output dir: %w", err)
	}

	rc, err := runctx.Open(filepath.Join(cfg.Output.Dir, "runctx.db"), false)
	if err != nil {
		return fmt.Errorf("psim run: open run context: %w", err)
	}
	defer rc.Close()

	baseProto, err := loadProtocol(cfg)
	if err != nil {
		return fmt.Errorf("psim run: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var runOpts []batch.Option
	if cfg.Output.EventsNatsURL != "" {
		nc, err := nats.Connect(cfg.Output.EventsNatsURL)
		if err != nil {
			return fmt.Errorf("psim run: connect to nats: %w", err)
		}
		defer nc.Close()
		bus := &telemetry.NatsEventBus{Conn: nc, SubjectPrefix: cfg.Output.EventsSubjectPrefix}
		runOpts = append(runOpts, batch.WithEventPublisher(bus))
	}

	_, err = batch.RunSequential(ctx, cfg.Protocol.RepCount, func(ctx context.Context, rep int) error {
		return runOne(ctx, cfg, baseProto, rc, rep)
	}, runOpts...)
	return err
}

func loadProtocol(cfg *config.Simulation) (*protocol.Protocol, error) {
	if cfg.Protocol.FileName == "" {
		return protocol.PingPong(cfg.Rates.LinkBandwidth*10, 4), nil
	}

	path := filepath.Join(cfg.Protocol.FileDir, cfg.Protocol.FileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open protocol file %s: %w", path, err)
	}
	defer f.Close()

	return protoparse.Parse(f)
}

func runOne(ctx context.Context, cfg *config.Simulation, baseProto *protocol.Protocol, rc *runctx.RunContext, rep int) error {
	rc.StartNewRun()

	metric, ok := protocol.ParseLoadMetric(cfg.LB.LoadMetric)
	if !ok {
		metric = protocol.LoadMetricRegistered
	}

	net, err := buildTopology(cfg, metric, rc)
	if err != nil {
		return err
	}

	p := baseProto.MakeCopy(true)
	p.ApplyRateConfig(cfg.Rates.InitialRate, cfg.Rates.MinRate, cfg.Rates.RateIncrease, cfg.Rates.RateDecreaseFactor, metric)

	sim := simulator.New(net, []*protocol.Protocol{p}, simulator.RatesConfig{
		StepSize:          cfg.Rates.StepSize,
		AdaptiveStep:      cfg.Rates.AdaptiveStep,
		AdaptiveMin:       cfg.Rates.AdaptiveMin,
		AdaptiveMax:       cfg.Rates.AdaptiveMax,
		ProfilingInterval: cfg.Rates.CoreStatusProfiling,
	}, rc)

	result, err := sim.Run(ctx)
	if err != nil {
		return fmt.Errorf("rep %d: %w", rep, err)
	}

	slog.Info("repetition complete", "rep", rep, "total_time", result.TotalTime, "steps", len(result.History))

	if cfg.Output.RecordLinkHistory {
		histPath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("history-%03d.csv", rep))
		if err := report.WriteHistoryCSV(histPath, result); err != nil {
			return err
		}
	}

	if cfg.Output.PlotGraphs {
		if err := report.PlotGraphs(filepath.Join(cfg.Output.Dir, fmt.Sprintf("plot-%03d.png", rep)), result); err != nil {
			slog.Warn("plotting skipped", "error", err)
		}
	}

	profPath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("profile-%03d.json", rep))
	if err := profile.WriteFile(profPath, flowProfile(p, result)); err != nil {
		return err
	}

	return nil
}

func flowProfile(p *protocol.Protocol, result *simulator.Result) *profile.Profile {
	var records []profile.FlowRecord
	for _, f := range p.Flows() {
		records = append(records, profile.FlowRecord{
			FlowID:    f.ID,
			JobID:     f.JobID,
			SrcRack:   f.SrcDevID,
			DstRack:   f.DstDevID,
			StartTime: f.Base().StartTime,
			EndTime:   f.Base().EndTime,
			FCT:       f.Base().EndTime - f.Base().StartTime,
			FlowSize:  f.Size,
		})
	}
	period := 0
	if len(result.History) > 0 {
		period = len(result.History)
	}
	return profile.FromHistory(period, records)
}

func buildTopology(cfg *config.Simulation, metric protocol.LoadMetric, rc *runctx.RunContext) (topology.Network, error) {
	var kind topology.Kind
	switch cfg.Topology.Kind {
	case "fattree":
		kind = topology.KindFatTree
	case "leafspine":
		kind = topology.KindLeafSpine
	case "bigswitch":
		kind = topology.KindBigSwitch
	default:
		return nil, fmt.Errorf("unknown topology kind %q", cfg.Topology.Kind)
	}

	var lbScheme loadbalancer.Scheme
	switch cfg.LB.Scheme {
	case "random":
		lbScheme = loadbalancer.SchemeRandom
	case "roundrobin":
		lbScheme = loadbalancer.SchemeRoundRobin
	case "powerofk":
		lbScheme = loadbalancer.SchemePowerOfK
	case "leastloaded":
		lbScheme = loadbalancer.SchemeLeastLoaded
	case "robinhood":
		lbScheme = loadbalancer.SchemeRobinHood
	case "futureload":
		lbScheme = loadbalancer.SchemeFutureLoad
	default:
		return nil, fmt.Errorf("unknown lb scheme %q", cfg.LB.Scheme)
	}

	var allocKind bwalloc.Kind
	switch cfg.Allocator.Kind {
	case "fairshare":
		allocKind = bwalloc.KindFairShare
	case "maxmin":
		allocKind = bwalloc.KindMaxMin
	case "fixedpriority":
		allocKind = bwalloc.KindFixedPriority
	case "priorityqueue":
		allocKind = bwalloc.KindPriorityQueue
	default:
		return nil, fmt.Errorf("unknown allocator kind %q", cfg.Allocator.Kind)
	}

	link := cfg.Rates.LinkBandwidth

	return topology.New(kind, topology.Params{
		MachineCount:          cfg.Topology.MachineCount,
		ServerPerRack:         cfg.Topology.ServersPerRack,
		RackPerPod:            cfg.Topology.RacksPerPod,
		AggPerPod:             cfg.Topology.AggsPerPod,
		PodCount:              cfg.Topology.PodCount,
		CoreCount:             cfg.Topology.CoreCount,
		ServerTorLinkCapacity: link * cfg.Topology.ServerTorMult,
		TorAggLinkCapacity:    link * cfg.Topology.TorAggMult,
		CoreLinkCapacity:      link * cfg.Topology.AggCoreMult,
		BigSwitchLinkCapacity: link,
		LoadMetric:            metric,
		DropChanceMultiplier:  0.01,
		Seed:                  cfg.LB.Seed,
		AllocKind:             allocKind,
		AllocOpts: bwalloc.Options{
			PriorityLevels: cfg.Allocator.PriorityLevels,
		},
		LBScheme:          lbScheme,
		LBSamples:         cfg.LB.Samples,
		LBSeed:            cfg.LB.Seed,
		History:           rc,
		ProfilingInterval: cfg.Rates.CoreStatusProfiling,
	})
}
