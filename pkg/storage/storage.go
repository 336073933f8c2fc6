package storage

import (
	"context"

	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
)

// Storage persists the simulation's durable state: NPC records, player
// accounts and the day of the last daily reset.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// NPC records. SaveNPCs replaces every stored record.
	SaveNPCs(ctx context.Context, recs []npc.Record) error
	LoadNPCs(ctx context.Context) ([]npc.Record, error)

	// Ids of NPCs removed on purpose. SaveRemovedNPCs replaces the set.
	SaveRemovedNPCs(ctx context.Context, ids []string) error
	LoadRemovedNPCs(ctx context.Context) ([]string, error)

	// Player accounts. SaveAccounts replaces every stored account.
	SaveAccounts(ctx context.Context, snaps []ledger.Snapshot) error
	LoadAccounts(ctx context.Context) ([]ledger.Snapshot, error)

	// Daily reset bookkeeping. LoadLastReset returns "" when nothing is stored.
	SaveLastReset(ctx context.Context, date string) error
	LoadLastReset(ctx context.Context) (string, error)
}
