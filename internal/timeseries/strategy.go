package timeseries

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/gridxlate/internal/core/db"
	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Staging strategies.
 *
 * A transfer first copies the rows it moves into staging tables, re-pointed
 * at the new owner, then deduplicates and applies them. How rows reach the
 * staging tables depends on what the store can do:
 *
 *   attach  SQLite. A scratch in-memory database is attached to the
 *           connection and rows are copied with one INSERT ... SELECT per
 *           table across databases. ATTACH/DETACH cannot run inside a
 *           transaction, so they bracket it.
 *   manual  Any store. Staging tables are connection-local temp tables and
 *           rows are read out and inserted one at a time.
 *
 * Both strategies stage the same columns with the same values, including the
 * original row ids, so the applied rows are identical.
 *
 * Staging tables are always named ts_staging and ca_staging unqualified.
 * SQLite resolves unqualified names through temp, main, then attached
 * databases, so the dedup and apply queries are shared by both strategies.
 */

// Capability selects the staging strategy for a store.
type Capability int

const (
	// CapabilityManual stages rows with row-by-row inserts into temp tables.
	CapabilityManual Capability = iota
	// CapabilityAttach stages rows through an attached scratch database.
	CapabilityAttach
)

// Strategy names accepted by ResolveCapability.
const (
	StrategyAuto   = "auto"
	StrategyAttach = "attach"
	StrategyManual = "manual"
)

func (c Capability) String() string {
	switch c {
	case CapabilityAttach:
		return StrategyAttach
	default:
		return StrategyManual
	}
}

// DetectCapability reports the best strategy a driver supports.
func DetectCapability(driver string) Capability {
	if driver == db.DriverSQLite {
		return CapabilityAttach
	}
	return CapabilityManual
}

// ResolveCapability turns a configured strategy name into a capability for
// driver. Forcing attach on a driver that cannot attach is an error.
func ResolveCapability(driver, strategy string) (Capability, error) {
	switch strategy {
	case "", StrategyAuto:
		return DetectCapability(driver), nil
	case StrategyManual:
		return CapabilityManual, nil
	case StrategyAttach:
		if DetectCapability(driver) != CapabilityAttach {
			return CapabilityManual, fmt.Errorf("driver %s does not support the attach strategy", driver)
		}
		return CapabilityAttach, nil
	default:
		return CapabilityManual, fmt.Errorf("unknown transfer strategy %q (expected auto, attach or manual)", strategy)
	}
}

// stager moves rows into the staging tables.
type stager interface {
	// prepare runs on the dedicated connection before BEGIN.
	prepare(ctx context.Context, conn *sqlx.Conn) error
	// release runs on the same connection after COMMIT or ROLLBACK.
	release(ctx context.Context, conn *sqlx.Conn) error
	setup(ctx context.Context, tx *sqlx.Tx) error
	stageAssociations(ctx context.Context, tx *sqlx.Tx, oldOwner, newOwner types.OwnerID, category string) error
	stageChildren(ctx context.Context, tx *sqlx.Tx, oldOwner, newOwner types.OwnerID) error
}

func newStager(c Capability, q *db.Queries) stager {
	if c == CapabilityAttach {
		return &attachStager{q: q}
	}
	return &manualStager{q: q}
}

type attachStager struct {
	q *db.Queries
}

func (s *attachStager) prepare(ctx context.Context, conn *sqlx.Conn) error {
	return s.execConn(ctx, conn, "attach-transfer-db")
}

func (s *attachStager) release(ctx context.Context, conn *sqlx.Conn) error {
	return s.execConn(ctx, conn, "detach-transfer-db")
}

func (s *attachStager) execConn(ctx context.Context, conn *sqlx.Conn, name string) error {
	stmt, err := s.q.Statement(name)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}

func (s *attachStager) setup(ctx context.Context, tx *sqlx.Tx) error {
	return execAll(ctx, s.q, tx,
		"create-ts-staging-attached",
		"create-children-staging-attached",
		"clear-ts-staging",
		"clear-children-staging")
}

func (s *attachStager) stageAssociations(ctx context.Context, tx *sqlx.Tx, oldOwner, newOwner types.OwnerID, category string) error {
	if _, err := s.q.ExecOn(ctx, tx, "stage-associations-attached", newOwner, oldOwner, category); err != nil {
		return fmt.Errorf("failed to stage associations: %w", err)
	}
	return nil
}

func (s *attachStager) stageChildren(ctx context.Context, tx *sqlx.Tx, oldOwner, newOwner types.OwnerID) error {
	if _, err := s.q.ExecOn(ctx, tx, "stage-children-attached", newOwner, oldOwner); err != nil {
		return fmt.Errorf("failed to stage child associations: %w", err)
	}
	return nil
}

type manualStager struct {
	q *db.Queries
}

func (s *manualStager) prepare(context.Context, *sqlx.Conn) error { return nil }
func (s *manualStager) release(context.Context, *sqlx.Conn) error { return nil }

func (s *manualStager) setup(ctx context.Context, tx *sqlx.Tx) error {
	return execAll(ctx, s.q, tx,
		"create-ts-staging-temp",
		"create-children-staging-temp",
		"clear-ts-staging",
		"clear-children-staging")
}

func (s *manualStager) stageAssociations(ctx context.Context, tx *sqlx.Tx, oldOwner, newOwner types.OwnerID, category string) error {
	var rows []Association
	if err := s.q.SelectOn(ctx, tx, &rows, "select-owner-category-associations", oldOwner, category); err != nil {
		return fmt.Errorf("failed to read associations: %w", err)
	}
	for _, a := range rows {
		_, err := s.q.ExecOn(ctx, tx, "insert-staged-association",
			a.ID, a.TimeSeriesUUID, a.TimeSeriesType, a.Name, newOwner, a.OwnerType, a.OwnerCategory,
			a.Features, a.InitialTimestamp, a.Resolution, a.Length, a.Units, a.MetadataUUID)
		if err != nil {
			return fmt.Errorf("failed to stage association %d: %w", a.ID, err)
		}
	}
	return nil
}

func (s *manualStager) stageChildren(ctx context.Context, tx *sqlx.Tx, oldOwner, newOwner types.OwnerID) error {
	var rows []ChildAssociation
	if err := s.q.SelectOn(ctx, tx, &rows, "select-child-references", oldOwner); err != nil {
		return fmt.Errorf("failed to read child associations: %w", err)
	}
	for _, c := range rows {
		_, err := s.q.ExecOn(ctx, tx, "insert-staged-child",
			c.ID, c.ParentUUID, c.ParentType, newOwner, c.ChildType)
		if err != nil {
			return fmt.Errorf("failed to stage child association %d: %w", c.ID, err)
		}
	}
	return nil
}

func execAll(ctx context.Context, q *db.Queries, tx *sqlx.Tx, names ...string) error {
	for _, name := range names {
		if _, err := q.ExecOn(ctx, tx, name); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
	}
	return nil
}
