package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/connect-hub/backend/internal/apperrors"
	"github.com/anonto42/connect-hub/backend/internal/models"
	"github.com/anonto42/connect-hub/backend/internal/toggle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type counterSide int

const (
	targetSide counterSide = iota
	actorSide
)

// counterColumn is a denormalized count of relation rows grouped by one side
// of the relation.
type counterColumn struct {
	model  func() any
	table  string
	column string
	side   counterSide
	// softDeleted skips rows with deleted_at set during recounts
	softDeleted bool
}

// relationTable describes where a relation kind lives and which counters track it.
type relationTable struct {
	table       string
	actorCol    string
	targetCol   string
	model       func() any
	newRow      func(actorID, targetID uint) any
	targetModel func() any
	targetName  string
	ownerCol    string
	counters    []counterColumn
}

var relationTables = map[toggle.Kind]relationTable{
	toggle.KindFollow: {
		table:     "follows",
		actorCol:  "follower_id",
		targetCol: "following_id",
		model:     func() any { return &models.Follow{} },
		newRow: func(actorID, targetID uint) any {
			return &models.Follow{FollowerID: actorID, FollowingID: targetID}
		},
		targetModel: func() any { return &models.User{} },
		targetName:  "user",
		ownerCol:    "id",
		counters: []counterColumn{
			{model: func() any { return &models.User{} }, table: "users", column: "followers_count", side: targetSide},
			{model: func() any { return &models.User{} }, table: "users", column: "following_count", side: actorSide},
		},
	},
	toggle.KindPostLike: {
		table:     "likes",
		actorCol:  "user_id",
		targetCol: "post_id",
		model:     func() any { return &models.Like{} },
		newRow: func(actorID, targetID uint) any {
			return &models.Like{UserID: actorID, PostID: targetID}
		},
		targetModel: func() any { return &models.Post{} },
		targetName:  "post",
		ownerCol:    "user_id",
		counters: []counterColumn{
			{model: func() any { return &models.Post{} }, table: "posts", column: "likes_count", side: targetSide},
		},
	},
	toggle.KindCommentLike: {
		table:     "comment_likes",
		actorCol:  "user_id",
		targetCol: "comment_id",
		model:     func() any { return &models.CommentLike{} },
		newRow: func(actorID, targetID uint) any {
			return &models.CommentLike{UserID: actorID, CommentID: targetID}
		},
		targetModel: func() any { return &models.Comment{} },
		targetName:  "comment",
		ownerCol:    "user_id",
		counters: []counterColumn{
			{model: func() any { return &models.Comment{} }, table: "comments", column: "likes_count", side: targetSide, softDeleted: true},
		},
	},
	toggle.KindProjectLike: {
		table:     "project_likes",
		actorCol:  "user_id",
		targetCol: "project_id",
		model:     func() any { return &models.ProjectLike{} },
		newRow: func(actorID, targetID uint) any {
			return &models.ProjectLike{UserID: actorID, ProjectID: targetID}
		},
		targetModel: func() any { return &models.Project{} },
		targetName:  "project",
		ownerCol:    "owner_id",
		counters: []counterColumn{
			{model: func() any { return &models.Project{} }, table: "projects", column: "likes_count", side: targetSide},
		},
	},
	toggle.KindPostSave: {
		table:     "saved_posts",
		actorCol:  "user_id",
		targetCol: "post_id",
		model:     func() any { return &models.SavedPost{} },
		newRow: func(actorID, targetID uint) any {
			return &models.SavedPost{UserID: actorID, PostID: targetID}
		},
		targetModel: func() any { return &models.Post{} },
		targetName:  "post",
		ownerCol:    "user_id",
		counters: []counterColumn{
			{model: func() any { return &models.Post{} }, table: "posts", column: "saves_count", side: targetSide},
		},
	},
}

func lookupRelation(kind toggle.Kind) (relationTable, error) {
	rt, ok := relationTables[kind]
	if !ok {
		return relationTable{}, apperrors.BadRequest("unknown relation kind " + string(kind))
	}
	return rt, nil
}

// PostgresRelationRepository implements toggle.Store on gorm. Despite the
// name it works on any gorm dialect that supports transactions.
type PostgresRelationRepository struct {
	db *gorm.DB
}

var _ toggle.Store = (*PostgresRelationRepository)(nil)

// NewPostgresRelationRepository creates a new PostgresRelationRepository
func NewPostgresRelationRepository(db *gorm.DB) *PostgresRelationRepository {
	return &PostgresRelationRepository{db: db}
}

// WithinTx runs fn in a single database transaction
func (r *PostgresRelationRepository) WithinTx(ctx context.Context, fn func(tx toggle.Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRelationTx{db: tx})
	})
}

// Exists reports whether the relation row exists
func (r *PostgresRelationRepository) Exists(ctx context.Context, kind toggle.Kind, actorID, targetID uint) (bool, error) {
	return (&gormRelationTx{db: r.db.WithContext(ctx)}).Exists(kind, actorID, targetID)
}

// Count counts relation rows pointing at targetID
func (r *PostgresRelationRepository) Count(ctx context.Context, kind toggle.Kind, targetID uint) (int64, error) {
	rt, err := lookupRelation(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(rt.model()).Where(rt.targetCol+" = ?", targetID).Count(&count).Error; err != nil {
		return 0, apperrors.Persistence(err, "failed to count "+rt.table)
	}
	return count, nil
}

// Recount rewrites the counters of kind from the relation table, touching only
// rows whose value differs.
func (r *PostgresRelationRepository) Recount(ctx context.Context, kind toggle.Kind) (int64, error) {
	rt, err := lookupRelation(kind)
	if err != nil {
		return 0, err
	}

	var repaired int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range rt.counters {
			groupCol := rt.targetCol
			if c.side == actorSide {
				groupCol = rt.actorCol
			}
			sub := fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s.%s = %s.id)", rt.table, rt.table, groupCol, c.table)
			query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s <> %s", c.table, c.column, sub, c.column, sub)
			if c.softDeleted {
				query += " AND deleted_at IS NULL"
			}
			res := tx.Exec(query)
			if res.Error != nil {
				return res.Error
			}
			repaired += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to recount "+rt.table)
	}
	return repaired, nil
}

// detachUserRelations deletes every relation row where userID is the actor,
// or the target of a follow, and decrements the counters of the other side.
// The caller must hold the user's row lock (lockRow) so no toggle by or of the
// user commits between the decrements and the deletes.
func detachUserRelations(tx *gorm.DB, userID uint) error {
	for _, kind := range toggle.Kinds {
		rt := relationTables[kind]
		targetIsUser := kind == toggle.KindFollow

		for _, c := range rt.counters {
			var matchCol, idCol string
			switch {
			case c.side == targetSide:
				matchCol, idCol = rt.actorCol, rt.targetCol
			case targetIsUser:
				matchCol, idCol = rt.targetCol, rt.actorCol
			default:
				continue
			}
			sub := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", idCol, rt.table, matchCol)
			err := tx.Exec(fmt.Sprintf("UPDATE %s SET %s = %s - 1 WHERE id IN (%s)", c.table, c.column, c.column, sub), userID).Error
			if err != nil {
				return err
			}
		}

		q := tx.Where(rt.actorCol+" = ?", userID)
		if targetIsUser {
			q = tx.Where(rt.actorCol+" = ? OR "+rt.targetCol+" = ?", userID, userID)
		}
		if err := q.Delete(rt.model()).Error; err != nil {
			return err
		}
	}
	return nil
}

type gormRelationTx struct {
	db *gorm.DB
}

// ActorExists share-locks the actor row so a concurrent DeleteUser either
// waits for this toggle or is seen as a missing actor.
func (t *gormRelationTx) ActorExists(actorID uint) (bool, error) {
	var ids []uint
	err := t.db.Model(&models.User{}).Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id = ?", actorID).Limit(1).Pluck("id", &ids).Error
	if err != nil {
		return false, apperrors.Persistence(err, "failed to load user")
	}
	return len(ids) > 0, nil
}

func (t *gormRelationTx) TargetOwner(kind toggle.Kind, targetID uint) (uint, bool, error) {
	rt, err := lookupRelation(kind)
	if err != nil {
		return 0, false, err
	}
	var owners []uint
	err = t.db.Model(rt.targetModel()).Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id = ?", targetID).Limit(1).Pluck(rt.ownerCol, &owners).Error
	if err != nil {
		return 0, false, apperrors.Persistence(err, "failed to load "+rt.targetName)
	}
	if len(owners) == 0 {
		return 0, false, nil
	}
	return owners[0], true, nil
}

func (t *gormRelationTx) TargetName(kind toggle.Kind) string {
	if rt, ok := relationTables[kind]; ok {
		return rt.targetName
	}
	return "target"
}

func (t *gormRelationTx) Exists(kind toggle.Kind, actorID, targetID uint) (bool, error) {
	rt, err := lookupRelation(kind)
	if err != nil {
		return false, err
	}
	var count int64
	err = t.db.Model(rt.model()).
		Where(rt.actorCol+" = ? AND "+rt.targetCol+" = ?", actorID, targetID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Persistence(err, "failed to query "+rt.table)
	}
	return count > 0, nil
}

func (t *gormRelationTx) Insert(kind toggle.Kind, actorID, targetID uint) error {
	rt, err := lookupRelation(kind)
	if err != nil {
		return err
	}
	if err := t.db.Create(rt.newRow(actorID, targetID)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("relation already exists")
		}
		return apperrors.Persistence(err, "failed to insert into "+rt.table)
	}
	return nil
}

func (t *gormRelationTx) Delete(kind toggle.Kind, actorID, targetID uint) (int64, error) {
	rt, err := lookupRelation(kind)
	if err != nil {
		return 0, err
	}
	res := t.db.Where(rt.actorCol+" = ? AND "+rt.targetCol+" = ?", actorID, targetID).Delete(rt.model())
	if res.Error != nil {
		return 0, apperrors.Persistence(res.Error, "failed to delete from "+rt.table)
	}
	return res.RowsAffected, nil
}

func (t *gormRelationTx) AdjustCounters(kind toggle.Kind, actorID, targetID uint, delta int) error {
	rt, err := lookupRelation(kind)
	if err != nil {
		return err
	}
	for _, c := range rt.counters {
		id := targetID
		if c.side == actorSide {
			id = actorID
		}
		res := t.db.Model(c.model()).Where("id = ?", id).
			UpdateColumn(c.column, gorm.Expr(c.column+" + ?", delta))
		if res.Error != nil {
			return apperrors.Persistence(res.Error, "failed to update "+c.table+"."+c.column)
		}
		if res.RowsAffected != 1 {
			return apperrors.NotFound(rt.targetName)
		}
	}
	return nil
}

// lockRow takes a row lock on model's row id for the rest of tx and returns
// gorm.ErrRecordNotFound if it does not exist. Toggles share-lock the same
// rows, so they wait for the deleting transaction. SQLite ignores the lock.
func lockRow(tx *gorm.DB, model any, id uint) error {
	var ids []uint
	err := tx.Model(model).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).Limit(1).Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
