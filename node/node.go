package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kestrelnode/kestrel/config"
	"github.com/kestrelnode/kestrel/ingest"
	"github.com/kestrelnode/kestrel/runtime"
	"github.com/kestrelnode/kestrel/seqalloc"
	"github.com/kestrelnode/kestrel/telemetry"
)

// Actor names within the graph. Peers are declared against these, so the
// engine can refuse a partial graph before anything spawns.
const (
	actorIntake    = "intake"
	actorExec      = "exec"
	actorStore     = "store"
	actorGossip    = "gossip"
	actorSequencer = "sequencer"
)

// Node assembles one Kestrel node: the actor graph under an engine, the
// ingestion and telemetry servers around it, and a lifecycle manager
// sequencing startup and shutdown.
type Node struct {
	cfg      *config.Config
	root     *runtime.Context
	registry *telemetry.Registry

	engine    *runtime.Engine
	lifecycle *Lifecycle

	store     *StoreBehavior
	sequencer runtime.Sender[SeqMsg]
}

// New builds a node from configuration. Nothing runs until Run is called.
func New(cfg *config.Config, logger zerolog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	registry := telemetry.NewRegistry()
	root := runtime.NewRoot(cfg.Node.Name, registry, logger)

	n := &Node{
		cfg:       cfg,
		root:      root,
		registry:  registry,
		engine:    runtime.NewEngine(root),
		lifecycle: NewLifecycle(logger, cfg.Runtime.ShutdownTimeout),
	}
	if err := n.wire(); err != nil {
		root.Cancel()
		return nil, err
	}
	return n, nil
}

// wire builds the mailboxes, actors and servers and registers everything
// with the engine and the lifecycle manager.
func (n *Node) wire() error {
	cfg := n.cfg

	// Mailboxes. Interior edges block so backpressure propagates toward
	// ingestion; the boundary and gossip edges reject so a saturated graph
	// sheds load instead of stalling callers.
	intakeMB := runtime.NewMailbox[[]byte](cfg.Runtime.MailboxCapacity, runtime.Reject)
	execMB := runtime.NewMailbox[ExecMsg](cfg.Runtime.MailboxCapacity, runtime.Block)
	storeMB := runtime.NewMailbox[StoreMsg](cfg.Runtime.MailboxCapacity, runtime.Block)
	gossipMB := runtime.NewMailbox[GossipMsg](cfg.Runtime.GossipMailboxCapacity, runtime.Reject)
	seqMB := runtime.NewMailbox[SeqMsg](cfg.Runtime.MailboxCapacity, runtime.Block)

	// Allocator: remote when an endpoint is configured, otherwise the
	// embedded store, which is also served to peers via the ingest server.
	var allocator seqalloc.Allocator
	var localStore *seqalloc.Store
	if cfg.Allocator.Endpoint != "" {
		allocator = seqalloc.NewClient(cfg.Allocator.Endpoint, cfg.Allocator.Timeout)
	} else {
		localStore = seqalloc.NewStore()
		allocator = localStore
	}

	decoder := ingest.JSONDecoder{}
	n.store = NewStoreBehavior(cfg.Runtime.FlushInterval)
	n.sequencer = seqMB.Sender()

	actors := []runtime.ActorSpec{
		{
			Runnable: runtime.NewActor[[]byte](actorIntake,
				NewIntakeBehavior(decoder, execMB.Sender(), gossipMB.Sender()), intakeMB),
			Policy: runtime.Contained,
			Peers:  []string{actorExec, actorGossip},
		},
		{
			Runnable: runtime.NewActor[ExecMsg](actorExec,
				NewExecBehavior(storeMB.Sender()), execMB),
			Policy: runtime.Contained,
			Peers:  []string{actorStore},
		},
		{
			Runnable: runtime.NewActor[StoreMsg](actorStore, n.store, storeMB),
			Policy:   runtime.Fatal,
		},
		{
			Runnable: runtime.NewActor[GossipMsg](actorGossip, NewGossipBehavior(), gossipMB),
			Policy:   runtime.Contained,
		},
		{
			Runnable: runtime.NewActor[SeqMsg](actorSequencer,
				NewSequencerBehavior(allocator, storeMB.Sender()), seqMB),
			Policy: runtime.Fatal,
			Peers:  []string{actorStore},
		},
	}
	for _, spec := range actors {
		if err := n.engine.Register(spec); err != nil {
			return fmt.Errorf("failed to register actor: %w", err)
		}
	}

	// The ingestion boundary validates submissions against its own view of
	// account state; accepted bytes are forwarded unmodified to intake.
	intake := intakeMB.Sender()
	pipeline := ingest.NewPipeline(
		n.root.WithLabel("ingest"),
		decoder,
		ingest.NewAccountApplier(),
		func(ctx context.Context, data []byte) error {
			return intake.Send(ctx, data)
		},
	)

	ingestSrv := ingest.NewServer(n.root.WithLabel("ingest-server"), cfg.Ingest, pipeline, localStore)
	telemetrySrv := NewTelemetryServer(n.root.WithLabel("telemetry-server"), cfg.Telemetry, n.registry)

	engineSvc := &engineService{engine: n.engine}
	if err := n.lifecycle.Register(engineSvc); err != nil {
		return err
	}
	if err := n.lifecycle.Register(telemetrySrv); err != nil {
		return err
	}
	if err := n.lifecycle.Register(ingestSrv, engineSvc.Name()); err != nil {
		return err
	}
	return nil
}

// Root returns the node's root context.
func (n *Node) Root() *runtime.Context {
	return n.root
}

// Store returns the storage behavior, exposing block height to callers.
func (n *Node) Store() *StoreBehavior {
	return n.store
}

// Sequencer returns the sender for privileged-operation ordering requests.
func (n *Node) Sequencer() runtime.Sender[SeqMsg] {
	return n.sequencer
}

// Run starts the node and blocks until ctx is cancelled or the actor graph
// fails fatally, then performs a coordinated shutdown.
func (n *Node) Run(ctx context.Context) error {
	if err := n.lifecycle.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), n.cfg.Runtime.ShutdownTimeout)
		defer cancel()
		if stopErr := n.lifecycle.Stop(stopCtx); stopErr != nil {
			n.root.Logger().Error().Err(stopErr).Msg("cleanup after failed start")
		}
		return fmt.Errorf("failed to start node: %w", err)
	}
	n.root.Logger().Info().Str("node", n.cfg.Node.Name).Msg("node running")

	// A fatal actor failure cancels the root context, so both arms of the
	// race funnel into the same shutdown path.
	select {
	case <-ctx.Done():
		n.root.Logger().Info().Msg("shutdown requested")
	case <-n.root.Done():
		n.root.Logger().Warn().Msg("root context cancelled")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), n.cfg.Runtime.ShutdownTimeout)
	defer cancel()
	return n.lifecycle.Stop(stopCtx)
}

// engineService adapts the actor engine to the lifecycle service interface.
type engineService struct {
	engine *runtime.Engine
}

// Name implements Service.
func (s *engineService) Name() string {
	return "actor-engine"
}

// Start implements Service.
func (s *engineService) Start(ctx context.Context) error {
	return s.engine.Start()
}

// Stop implements Service.
func (s *engineService) Stop(ctx context.Context) error {
	return s.engine.Shutdown(ctx)
}
