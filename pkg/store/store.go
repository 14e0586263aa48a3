// Package store defines how the engine receives record snapshots.
package store

import (
	"errors"

	"github.com/mpapenbr/fpv-racedash/pkg/model"
)

// Collection names used by the record transports.
const (
	CollectionPilots     = "pilots"
	CollectionChannels   = "channels"
	CollectionRounds     = "rounds"
	CollectionRaces      = "races"
	CollectionLaps       = "laps"
	CollectionDetections = "detections"
	CollectionKV         = "kv"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrClosed            = errors.New("store closed")
)

// Source provides the current snapshot and notifies subscribers about new
// ones. Each value received from a subscription is a complete snapshot.
type Source interface {
	Current() *model.Snapshot
	Subscribe() <-chan *model.Snapshot
	CancelSubscription(<-chan *model.Snapshot)
	Close()
}

// Collections lists all known collection names.
func Collections() []string {
	return []string{
		CollectionPilots, CollectionChannels, CollectionRounds, CollectionRaces,
		CollectionLaps, CollectionDetections, CollectionKV,
	}
}
