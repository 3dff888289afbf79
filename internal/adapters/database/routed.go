package database

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/domain"
	"github.com/jmoiron/sqlx"
)

// Target names which database served a read.
type Target string

const (
	TargetMaster  Target = "master"
	TargetReplica Target = "replica"
)

// Routed pairs a master with an optional read replica. Writes always go to
// the master; reads go to the replica for a runtime-adjustable percentage
// of calls. The split is stateless per call, which is all the read-routing
// policy requires.
type Routed struct {
	master  *sqlx.DB
	replica *sqlx.DB

	replicaPercent atomic.Int64

	// Returns a number in [0, 100). Injected in tests.
	percentileFunc func() int
}

type RoutedOption func(*Routed)

func WithPercentileFunc(percentileFunc func() int) RoutedOption {
	return func(r *Routed) {
		r.percentileFunc = percentileFunc
	}
}

// NewRouted wires a master and an optional replica. A nil replica routes
// every read to the master regardless of the configured percentage.
func NewRouted(master, replica *sqlx.DB, replicaPercent int, options ...RoutedOption) *Routed {
	routed := &Routed{
		master:  master,
		replica: replica,
		percentileFunc: func() int {
			return rand.Intn(100)
		},
	}
	routed.SetReplicaPercent(replicaPercent)

	for _, option := range options {
		option(routed)
	}
	return routed
}

func (r *Routed) Master() *sqlx.DB {
	return r.master
}

func (r *Routed) Replica() (*sqlx.DB, error) {
	if r.replica == nil {
		return nil, fmt.Errorf("%w: replica requested", domain.ErrNoReplica)
	}
	return r.replica, nil
}

func (r *Routed) HasReplica() bool {
	return r.replica != nil
}

// Reader picks the database for an auto-routed read.
func (r *Routed) Reader() (*sqlx.DB, Target) {
	if r.replica == nil {
		return r.master, TargetMaster
	}
	if r.percentileFunc() < int(r.replicaPercent.Load()) {
		return r.replica, TargetReplica
	}
	return r.master, TargetMaster
}

// SetReplicaPercent clamps percent to [0, 100] and returns the applied value.
func (r *Routed) SetReplicaPercent(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	r.replicaPercent.Store(int64(percent))
	return percent
}

func (r *Routed) ReplicaPercent() int {
	return int(r.replicaPercent.Load())
}

// Close closes both connections, joining the errors.
func (r *Routed) Close() error {
	err := r.master.Close()
	if r.replica != nil {
		if replicaErr := r.replica.Close(); err == nil {
			err = replicaErr
		}
	}
	return err
}
