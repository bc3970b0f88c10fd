package migrations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotApplied   = errors.New("migrations: migration not applied")
	ErrIrreversible = errors.New("migrations: migration cannot be reverted")
)

// Record is a row of schema_migrations
type Record struct {
	App       string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"primaryKey;type:varchar(128)"`
	AppliedAt time.Time `gorm:"not null"`
}

func (Record) TableName() string {
	return "schema_migrations"
}

// Status describes one migration for -migrate-status
type Status struct {
	Key       Key
	Applied   bool
	AppliedAt *time.Time
}

// Runner applies and reverts the migrations of a Graph against a database
type Runner struct {
	db    *gorm.DB
	graph *Graph
}

func NewRunner(db *gorm.DB, graph *Graph) *Runner {
	return &Runner{db: db, graph: graph}
}

func (r *Runner) ensureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[Key]time.Time, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	var records []Record
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load schema_migrations: %w", err)
	}

	applied := make(map[Key]time.Time, len(records))
	for _, rec := range records {
		applied[Key{App: rec.App, Name: rec.Name}] = rec.AppliedAt
	}
	return applied, nil
}

// Up applies every pending migration in dependency order. Each step runs in
// its own transaction together with its schema_migrations row, so a failing
// step leaves earlier steps applied and itself untouched.
func (r *Runner) Up(ctx context.Context) ([]Key, error) {
	ordered, err := r.graph.Order()
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []Key
	for _, m := range ordered {
		key := m.Key()
		if _, ok := applied[key]; ok {
			continue
		}

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Apply(tx); err != nil {
				return err
			}
			return tx.Create(&Record{App: key.App, Name: key.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return done, fmt.Errorf("apply %s: %w", key, err)
		}

		log.Printf("Applied migration %s", key)
		done = append(done, key)
	}
	return done, nil
}

// Down reverts target and every applied migration depending on it,
// dependents first.
func (r *Runner) Down(ctx context.Context, target Key) ([]Key, error) {
	if _, ok := r.graph.Get(target); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMigration, target)
	}
	ordered, err := r.graph.Order()
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := applied[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotApplied, target)
	}

	affected := map[Key]bool{target: true}
	for _, k := range r.graph.Dependents(target) {
		affected[k] = true
	}

	var plan []Migration
	for i := len(ordered) - 1; i >= 0; i-- {
		m := ordered[i]
		key := m.Key()
		if !affected[key] {
			continue
		}
		if _, ok := applied[key]; !ok {
			continue
		}
		if m.Revert == nil {
			return nil, fmt.Errorf("%w: %s", ErrIrreversible, key)
		}
		plan = append(plan, m)
	}

	var done []Key
	for _, m := range plan {
		key := m.Key()
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Revert(tx); err != nil {
				return err
			}
			return tx.Where("app = ? AND name = ?", key.App, key.Name).Delete(&Record{}).Error
		})
		if err != nil {
			return done, fmt.Errorf("revert %s: %w", key, err)
		}

		log.Printf("Reverted migration %s", key)
		done = append(done, key)
	}
	return done, nil
}

// Status lists every migration in apply order
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	ordered, err := r.graph.Order()
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(ordered))
	for _, m := range ordered {
		st := Status{Key: m.Key()}
		if at, ok := applied[st.Key]; ok {
			at := at
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
