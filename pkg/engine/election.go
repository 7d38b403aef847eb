package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/store"
)

// ElectionManager keeps one daemon per world driving the schedulers. The
// holder id is the daemon's advertised URL so followers can redirect writes.
type ElectionManager struct {
	store     store.LeaseStore
	holderID  string
	leaseName string
	ttl       time.Duration
	logger    *slog.Logger

	onPromote func()
	onDemote  func()

	mu       sync.RWMutex
	isLeader bool
	epoch    int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewElectionManager(
	store store.LeaseStore,
	holderID string,
	leaseName string,
	ttl time.Duration,
	onPromote func(),
	onDemote func(),
) *ElectionManager {
	return &ElectionManager{
		store:     store,
		holderID:  holderID,
		leaseName: leaseName,
		ttl:       ttl,
		logger:    slog.Default(),
		onPromote: onPromote,
		onDemote:  onDemote,
		stopCh:    make(chan struct{}),
	}
}

func (em *ElectionManager) SetLogger(l *slog.Logger) {
	if l != nil {
		em.logger = l
	}
}

// Start runs an election immediately, then every ttl/2.
func (em *ElectionManager) Start(ctx context.Context) {
	em.attemptElection(ctx)
	go func() {
		ticker := time.NewTicker(em.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				em.attemptElection(ctx)
			case <-em.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	em.logger.Info("election_started", "holder_id", em.holderID, "lease", em.leaseName)
}

// Stop ends the loop and releases the lease if held. Demotion callbacks are
// not called.
func (em *ElectionManager) Stop(ctx context.Context) {
	em.stopOnce.Do(func() { close(em.stopCh) })

	em.mu.Lock()
	wasLeader := em.isLeader
	em.isLeader = false
	em.mu.Unlock()

	if wasLeader {
		if err := em.store.Release(ctx, em.leaseName, em.holderID); err != nil {
			em.logger.Error("lease_release_failed", "error", err, "holder_id", em.holderID, "lease", em.leaseName)
		}
	}
	em.logger.Info("election_stopped", "holder_id", em.holderID, "lease", em.leaseName)
}

func (em *ElectionManager) IsLeader() bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.isLeader
}

// Epoch returns the lease epoch observed when leadership was last gained.
func (em *ElectionManager) Epoch() int64 {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.epoch
}

// GetLeader returns the current holder id and whether anyone holds the lease.
func (em *ElectionManager) GetLeader(ctx context.Context) (string, bool, error) {
	l, err := em.store.Get(ctx, em.leaseName)
	if err != nil {
		return "", false, err
	}
	if l == nil {
		return "", false, nil
	}
	return l.HolderID, true, nil
}

func (em *ElectionManager) attemptElection(ctx context.Context) {
	em.mu.RLock()
	wasLeader := em.isLeader
	em.mu.RUnlock()

	var nowLeader bool
	if wasLeader {
		if err := em.store.Renew(ctx, em.leaseName, em.holderID, em.ttl); err != nil {
			em.logger.Warn("lease_renew_failed", "error", err, "holder_id", em.holderID, "lease", em.leaseName)
		} else {
			nowLeader = true
		}
	} else {
		acquired, err := em.store.Acquire(ctx, em.leaseName, em.holderID, em.ttl)
		if err != nil {
			em.logger.Warn("lease_acquire_failed", "error", err, "holder_id", em.holderID, "lease", em.leaseName)
		}
		nowLeader = err == nil && acquired
	}

	var epoch int64
	if nowLeader && !wasLeader {
		if l, err := em.store.Get(ctx, em.leaseName); err == nil && l != nil {
			epoch = l.Epoch
		}
	}

	em.mu.Lock()
	em.isLeader = nowLeader
	if nowLeader && !wasLeader {
		em.epoch = epoch
	}
	em.mu.Unlock()

	switch {
	case !wasLeader && nowLeader:
		em.logger.Info("leader_promoted", "holder_id", em.holderID, "lease", em.leaseName, "epoch", epoch)
		if em.onPromote != nil {
			em.onPromote()
		}
	case wasLeader && !nowLeader:
		em.logger.Info("leader_demoted", "holder_id", em.holderID, "lease", em.leaseName)
		if em.onDemote != nil {
			em.onDemote()
		}
	}
}
