// Package skipnode assembles a skip graph peer process: store, engine,
// transport, node, optional etcd registration and HTTP service.
package skipnode

import (
	"context"
	"fmt"
	"time"

	"github.com/mosaicnetworks/skipgraph/src/config"
	"github.com/mosaicnetworks/skipgraph/src/discovery"
	"github.com/mosaicnetworks/skipgraph/src/net"
	"github.com/mosaicnetworks/skipgraph/src/node"
	"github.com/mosaicnetworks/skipgraph/src/service"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/mosaicnetworks/skipgraph/src/telemetry"
	"github.com/mosaicnetworks/skipgraph/src/version"
	"github.com/sirupsen/logrus"
)

// SkipNode is a skip graph peer process. Transport may be set before Init to
// replace the default TCP transport.
type SkipNode struct {
	Config    *config.Config
	Node      *node.Node
	Engine    *skipgraph.Engine
	Transport net.Transport
	Store     skipgraph.Store
	Registry  *discovery.Registry
	Service   *service.Service

	logger *logrus.Entry
}

// NewSkipNode ...
func NewSkipNode(conf *config.Config) *SkipNode {
	return &SkipNode{
		Config: conf,
		logger: conf.Logger(),
	}
}

func (s *SkipNode) initStore() error {
	if !s.Config.Store {
		s.Store = skipgraph.NewInmemStore()

		s.logger.Debug("created new in-mem store")
	} else {
		s.logger.WithField("path", s.Config.DatabaseDir).Debug("Attempting to load or create database")

		store, err := skipgraph.LoadOrCreateBadgerStore(s.Config.DatabaseDir)
		if err != nil {
			return err
		}

		if store.NeedBoostrap() {
			s.logger.Debug("loaded badger store from existing database")
		} else {
			s.logger.Debug("created new badger store from fresh database")
		}

		s.Store = store
	}

	return nil
}

func (s *SkipNode) initEngine() error {
	engine, err := skipgraph.NewEngine(s.Config.MaxLevels, s.Store, s.logger.WithField("component", "engine"))
	if err != nil {
		return err
	}

	s.Engine = engine
	telemetry.GraphSize.Set(float64(engine.Size()))

	return nil
}

func (s *SkipNode) initTransport() error {
	if s.Transport != nil {
		return nil
	}

	s.Transport = net.NewTCPTransport(
		s.Config.BindHost,
		s.Config.MaxPool,
		s.Config.Timeout,
		s.logger.WithField("component", "transport"),
	)

	return nil
}

func (s *SkipNode) initRegistry() error {
	if len(s.Config.Etcd) == 0 {
		return nil
	}

	registry, err := discovery.NewRegistry(s.Config.Etcd, s.Config.EtcdTTL, s.logger.WithField("component", "discovery"))
	if err != nil {
		return err
	}

	s.Registry = registry

	return nil
}

// introducer returns the address to join through: none for the first node,
// the configured one, or a node registered in etcd.
func (s *SkipNode) introducer(self int64) (string, error) {
	if s.Config.FirstNode {
		return "", nil
	}

	if s.Config.Introducer != "" {
		return s.Config.Introducer, nil
	}

	if s.Registry == nil {
		return "", fmt.Errorf("no introducer: set first-node, introducer or etcd")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr, ok, err := s.Registry.Introducer(ctx, self)
	if err != nil {
		return "", err
	}
	if !ok {
		s.logger.Debug("No registered node => starting a new graph")
		return "", nil
	}

	return addr, nil
}

func (s *SkipNode) initNode() error {
	numID := s.Config.NodeNumID()
	nameID := s.Config.NodeNameID()

	introducer, err := s.introducer(numID)
	if err != nil {
		return err
	}

	nodeConf := node.NewConfig(
		s.Config.Timeout,
		s.Config.JoinRetry,
		introducer,
		s.Config.Advertise,
		s.Config.BaseLogger(),
	)

	s.logger.WithFields(logrus.Fields{
		"num_id":     numID,
		"name_id":    nameID,
		"introducer": introducer,
	}).Debug("Initializing node")

	s.Node = node.NewNode(
		nodeConf,
		skipgraph.NewIdentity(numID, nameID, "", 0),
		s.Engine,
		s.Transport,
	)

	if err := s.Node.Init(s.Config.Port); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	if s.Registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Registry.Register(ctx, s.Node.Self()); err != nil {
			return err
		}
	}

	return nil
}

func (s *SkipNode) initService() error {
	if !s.Config.NoService {
		s.Service = service.NewService(s.Config.ServiceAddr, s.Node, s.logger.WithField("component", "service"))
	}
	return nil
}

// Init builds every component. On error, the components already built are
// released.
func (s *SkipNode) Init() error {
	telemetry.SetBuildInfo(version.Version, version.GitCommit)

	steps := []func() error{
		s.initStore,
		s.initEngine,
		s.initTransport,
		s.initRegistry,
		s.initNode,
		s.initService,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			s.release()
			return err
		}
	}

	return nil
}

// Run starts the service, if any, and runs the node until it shuts down.
func (s *SkipNode) Run() {
	if s.Service != nil {
		go s.Service.Serve()
	}

	s.Node.Run()

	s.Shutdown()
}

// Shutdown stops every component.
func (s *SkipNode) Shutdown() {
	if s.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.Service.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Error("Stopping service")
		}
		cancel()
	}

	if s.Registry != nil {
		if err := s.Registry.Close(); err != nil {
			s.logger.WithError(err).Error("Closing registry")
		}
		s.Registry = nil
	}

	if s.Node != nil {
		s.Node.Shutdown()
	}
}

// release frees what a failed Init built before the node existed.
func (s *SkipNode) release() {
	if s.Node != nil {
		s.Shutdown()
		return
	}
	if s.Registry != nil {
		s.Registry.Close()
		s.Registry = nil
	}
	if s.Transport != nil {
		s.Transport.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}
