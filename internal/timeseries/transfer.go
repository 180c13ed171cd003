package timeseries

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/solatis/gridxlate/internal/core/db"
	"github.com/solatis/gridxlate/internal/types"
)

/*
 * Transfer runs five phases in order on one dedicated connection and one
 * transaction:
 *
 *   setup           lock the association tables against other writers,
 *                   create and empty ts_staging and ca_staging
 *   transfer        stage the old owner's rows in the category, re-pointed
 *                   at the new owner
 *   deduplicate     keep the lowest id per (time_series_uuid, category)
 *                   across staged rows and rows the new owner already has,
 *                   then replace the old owner's rows with the staged ones
 *   remap-children  same stage/dedupe/apply cycle for component_associations
 *                   rows naming the old owner as child
 *   finalize        reindex both tables, drop staging, commit, reload cache
 *
 * Staged rows keep their original ids, so "lowest id" is "inserted first".
 * Any failure before commit rolls the whole transfer back.
 */

// Phase names a transfer step.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseTransfer
	PhaseDeduplicate
	PhaseRemapChildren
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseTransfer:
		return "transfer"
	case PhaseDeduplicate:
		return "deduplicate"
	case PhaseRemapChildren:
		return "remap-children"
	case PhaseFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// TransferError reports the phase a failed transfer stopped in. The
// transaction has been rolled back when it is returned.
type TransferError struct {
	Phase Phase
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed in %s phase: %v", e.Phase, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

var reindexTables = []string{"time_series_associations", "component_associations"}

// Transfer re-points every association of oldOwner in category to newOwner
// and every child link naming oldOwner to newOwner. Either all of it
// commits or none of it does.
func (s *Store) Transfer(ctx context.Context, oldOwner, newOwner, category string) (TransferOutcome, error) {
	from, err := types.ParseOwnerID(oldOwner)
	if err != nil {
		return TransferOutcome{}, err
	}
	to, err := types.ParseOwnerID(newOwner)
	if err != nil {
		return TransferOutcome{}, err
	}
	if from == to {
		return TransferOutcome{}, types.NewValidationError("new_owner_uuid", types.ErrSameOwner,
			"old and new owner are both %s", from)
	}
	if category == "" {
		return TransferOutcome{}, types.NewValidationError("owner_category", types.ErrMissingValue, "category is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With(
		zap.String("old_owner", string(from)),
		zap.String("new_owner", string(to)),
		zap.String("category", category))

	start := time.Now()
	out, err := s.transfer(ctx, logger, from, to, category)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.TransferFinished(nil, elapsed)
		logger.Error("transfer rolled back", zap.Error(err), zap.Duration("duration", elapsed))
		return TransferOutcome{}, err
	}

	s.metrics.TransferFinished(out.rows(), elapsed)
	logger.Info("transfer committed",
		zap.Int("transferred", out.Transferred),
		zap.Int("deduplicated", out.Deduplicated),
		zap.Int("children_remapped", out.ChildrenRemapped),
		zap.Int("children_deduplicated", out.ChildrenDeduplicated),
		zap.Duration("duration", elapsed))

	s.reloadCache(ctx, logger, from, to)
	return out, nil
}

func (s *Store) transfer(ctx context.Context, logger *zap.Logger, from, to types.OwnerID, category string) (TransferOutcome, error) {
	var out TransferOutcome

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return out, &TransferError{Phase: PhaseSetup, Err: fmt.Errorf("failed to acquire connection: %w", err)}
	}
	defer conn.Close()

	if err := s.stager.prepare(ctx, conn); err != nil {
		return out, &TransferError{Phase: PhaseSetup, Err: err}
	}
	defer func() {
		// The connection goes back to the pool; detach even if ctx is done.
		if err := s.stager.release(context.WithoutCancel(ctx), conn); err != nil {
			logger.Warn("failed to release staging", zap.Error(err))
		}
	}()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return out, &TransferError{Phase: PhaseSetup, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	phase := PhaseSetup
	fail := func(err error) (TransferOutcome, error) {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Warn("rollback failed", zap.Stringer("phase", phase), zap.Error(rbErr))
		}
		return TransferOutcome{}, &TransferError{Phase: phase, Err: err}
	}
	done := func() {
		logger.Debug("transfer phase complete", zap.Stringer("phase", phase))
	}

	if err := execAll(ctx, s.q, tx, lockQueries(tx.DriverName())...); err != nil {
		return fail(err)
	}
	if err := s.stager.setup(ctx, tx); err != nil {
		return fail(err)
	}
	done()

	phase = PhaseTransfer
	if err := s.stager.stageAssociations(ctx, tx, from, to, category); err != nil {
		return fail(err)
	}
	done()

	phase = PhaseDeduplicate
	staged, deduped, err := s.dedupeAndApply(ctx, tx, dedupeSet{
		count:          "count-ts-staging",
		internal:       "dedupe-ts-staging-internal",
		againstOwner:   "dedupe-ts-staging-against-owner",
		ownerAgainst:   "dedupe-owner-against-ts-staging",
		deleteOriginal: "delete-owner-category-associations",
		apply:          "apply-ts-staging",
	}, []any{from, category}, to)
	if err != nil {
		return fail(err)
	}
	out.Transferred, out.Deduplicated = staged, deduped
	done()

	phase = PhaseRemapChildren
	if err := s.stager.stageChildren(ctx, tx, from, to); err != nil {
		return fail(err)
	}
	remapped, childDeduped, err := s.dedupeAndApply(ctx, tx, dedupeSet{
		count:          "count-children-staging",
		internal:       "dedupe-children-staging-internal",
		againstOwner:   "dedupe-children-staging-against-owner",
		ownerAgainst:   "dedupe-owner-against-children-staging",
		deleteOriginal: "delete-child-references",
		apply:          "apply-children-staging",
	}, []any{from}, to)
	if err != nil {
		return fail(err)
	}
	out.ChildrenRemapped, out.ChildrenDeduplicated = remapped, childDeduped
	done()

	phase = PhaseFinalize
	for _, table := range reindexTables {
		if _, err := tx.ExecContext(ctx, reindexStatement(tx.DriverName(), table)); err != nil {
			return fail(fmt.Errorf("failed to reindex %s: %w", table, err))
		}
	}
	if err := execAll(ctx, s.q, tx, "drop-ts-staging", "drop-children-staging"); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return TransferOutcome{}, &TransferError{Phase: phase, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	done()

	return out, nil
}

// dedupeSet names the queries of one stage/dedupe/apply cycle.
type dedupeSet struct {
	count          string
	internal       string
	againstOwner   string
	ownerAgainst   string
	deleteOriginal string
	apply          string
}

// dedupeAndApply prunes staging and the new owner's rows down to one row
// per key, then swaps the originals for the staged rows. Returns the rows
// applied and the rows dropped as duplicates.
func (s *Store) dedupeAndApply(ctx context.Context, tx *sqlx.Tx, set dedupeSet, deleteArgs []any, to types.OwnerID) (int, int, error) {
	dropped := 0
	for _, step := range []struct {
		name string
		args []any
	}{
		{set.internal, nil},
		{set.againstOwner, []any{to}},
		{set.ownerAgainst, []any{to}},
	} {
		n, err := s.execCount(ctx, tx, step.name, step.args...)
		if err != nil {
			return 0, 0, err
		}
		dropped += n
	}

	if _, err := s.q.ExecOn(ctx, tx, set.deleteOriginal, deleteArgs...); err != nil {
		return 0, 0, fmt.Errorf("failed to run %s: %w", set.deleteOriginal, err)
	}
	applied, err := s.execCount(ctx, tx, set.apply)
	if err != nil {
		return 0, 0, err
	}

	var remaining int
	if err := s.q.GetOn(ctx, tx, &remaining, set.count); err != nil {
		return 0, 0, fmt.Errorf("failed to run %s: %w", set.count, err)
	}
	if remaining != applied {
		return 0, 0, fmt.Errorf("applied %d rows from staging holding %d", applied, remaining)
	}
	return applied, dropped, nil
}

func (s *Store) execCount(ctx context.Context, tx *sqlx.Tx, name string, args ...any) (int, error) {
	res, err := s.q.ExecOn(ctx, tx, name, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to run %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count rows for %s: %w", name, err)
	}
	return int(n), nil
}

// lockQueries names the statements that keep other writers off the
// association tables until the transfer commits. SQLite connections begin
// IMMEDIATE transactions (see db.Open), which already hold the write lock.
func lockQueries(driver string) []string {
	if driver == db.DriverPostgres {
		return []string{"lock-association-tables"}
	}
	return nil
}

func reindexStatement(driver, table string) string {
	if driver == db.DriverPostgres {
		return "REINDEX TABLE " + table
	}
	return "REINDEX " + table
}

// reloadCache drops every cached view and warms the two owners a transfer
// touched. A failed warm-up leaves the owner to load on its next read.
func (s *Store) reloadCache(ctx context.Context, logger *zap.Logger, owners ...types.OwnerID) {
	s.cache.reset()
	for _, owner := range owners {
		rows, err := s.loadOwner(ctx, owner)
		if err != nil {
			logger.Warn("failed to reload association cache", zap.String("owner", string(owner)), zap.Error(err))
			continue
		}
		s.cache.put(owner, rows)
	}
}
