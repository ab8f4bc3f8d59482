// Package discovery registers skip graph nodes in etcd and finds introducers
// for nodes that join without one.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyPrefix is the etcd prefix under which nodes are registered.
const KeyPrefix = "/skipgraph/nodes/"

// NewClient ...
func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// NodeKey is the etcd key of a node.
func NodeKey(numID int64) string {
	return KeyPrefix + strconv.FormatInt(numID, 10)
}

// ParseNodeKey is the reverse of NodeKey.
func ParseNodeKey(key string) (int64, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return 0, fmt.Errorf("not a node key: %s", key)
	}
	return strconv.ParseInt(strings.TrimPrefix(key, KeyPrefix), 10, 64)
}

// Registry keeps a node registered in etcd under a lease.
type Registry struct {
	cli    *clientv3.Client
	ttl    int64
	logger *logrus.Entry

	mu     sync.Mutex
	lease  clientv3.LeaseID
	cancel context.CancelFunc
}

// NewRegistry connects to the etcd endpoints.
func NewRegistry(endpoints []string, ttl int64, logger *logrus.Entry) (*Registry, error) {
	cli, err := NewClient(endpoints)
	if err != nil {
		return nil, err
	}
	return &Registry{
		cli:    cli,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Register puts id under its node key with a lease that is kept alive until
// Close.
func (r *Registry) Register(ctx context.Context, id skipgraph.Identity) error {
	value, err := id.Marshal()
	if err != nil {
		return err
	}

	lease, err := r.cli.Grant(ctx, r.ttl)
	if err != nil {
		return err
	}

	if _, err := r.cli.Put(ctx, NodeKey(id.NumID), string(value), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return err
	}

	// Drain keepalive responses so the client does not warn about a full
	// channel.
	go func() {
		for range ch {
		}
		r.logger.Debug("etcd keepalive stopped")
	}()

	r.mu.Lock()
	r.lease = lease.ID
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"key":   NodeKey(id.NumID),
		"lease": lease.ID,
	}).Debug("Registered with etcd")

	return nil
}

// Nodes lists the registered identities in ascending NumID order.
func (r *Registry) Nodes(ctx context.Context) ([]skipgraph.Identity, error) {
	resp, err := r.cli.Get(ctx, KeyPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	res := []skipgraph.Identity{}
	for _, kv := range resp.Kvs {
		var id skipgraph.Identity
		if err := id.Unmarshal(kv.Value); err != nil {
			r.logger.WithFields(logrus.Fields{
				"key":   string(kv.Key),
				"error": err,
			}).Warn("Skipping malformed registration")
			continue
		}
		res = append(res, id)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].NumID < res[j].NumID })

	return res, nil
}

// Introducer returns the full address of a registered node other than self.
func (r *Registry) Introducer(ctx context.Context, self int64) (string, bool, error) {
	nodes, err := r.Nodes(ctx)
	if err != nil {
		return "", false, err
	}
	addr, ok := PickIntroducer(nodes, self)
	return addr, ok, nil
}

// Close revokes the lease and closes the client.
func (r *Registry) Close() error {
	r.mu.Lock()
	lease, cancel := r.lease, r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		if _, err := r.cli.Revoke(ctx, lease); err != nil {
			r.logger.WithError(err).Warn("Revoking etcd lease")
		}
		done()
	}

	return r.cli.Close()
}

// PickIntroducer returns the full address of the lowest registered node that
// is not self.
func PickIntroducer(nodes []skipgraph.Identity, self int64) (string, bool) {
	for _, n := range nodes {
		if n.NumID != self {
			return n.FullAddress(), true
		}
	}
	return "", false
}
