package sqldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/root"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("sqldb: run not found")

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunRecord is a persisted run. Settings and report are stored as JSON.
type RunRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Created   time.Time `gorm:"index" json:"created"`
	Status    string    `gorm:"index;size:16" json:"status"`
	Reserve   float64   `json:"reserve"`
	LoadMax   float64   `json:"load_max"`
	Objective float64   `json:"objective"`
	Method    string    `gorm:"size:16" json:"method"`
	ElapsedMS float64   `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
	Settings  []byte    `json:"-"`
	Report    []byte    `json:"-"`
}

// Archive stores runs in a SQLite database.
type Archive struct {
	db *gorm.DB
}

// Open opens or creates the SQLite archive at path.
func Open(path string) (*Archive, error) {
	return OpenConfig(Config{Driver: DriverSQLite, Path: path})
}

// OpenConfig opens the archive on the configured driver and migrates it.
func OpenConfig(cfg Config) (*Archive, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save stores a completed run. Saving a run already archived is a no-op.
func (a *Archive) Save(run root.Run) error {
	set, err := json.Marshal(run.Settings)
	if err != nil {
		return err
	}
	rep, err := json.Marshal(run.Report)
	if err != nil {
		return err
	}
	return a.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&RunRecord{
		ID:        run.ID.String(),
		Created:   run.Created,
		Status:    StatusCompleted,
		Reserve:   run.Settings.Reserve,
		LoadMax:   run.Settings.LoadMax,
		Objective: run.Report.Objective,
		Method:    run.Method,
		ElapsedMS: float64(run.Elapsed) / float64(time.Millisecond),
		Settings:  set,
		Report:    rep,
	}).Error
}

// SaveFailure stores a failed run without a report.
func (a *Archive) SaveFailure(re root.RunError) error {
	set, err := json.Marshal(re.Settings)
	if err != nil {
		return err
	}
	return a.db.Create(&RunRecord{
		ID:       re.ID.String(),
		Created:  time.Now().UTC(),
		Status:   StatusFailed,
		Reserve:  re.Settings.Reserve,
		LoadMax:  re.Settings.LoadMax,
		Error:    re.Err,
		Settings: set,
	}).Error
}

// Get returns a completed run.
func (a *Archive) Get(id uuid.UUID) (root.Run, error) {
	var rec RunRecord
	err := a.db.Where("id = ? AND status = ?", id.String(), StatusCompleted).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return root.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return root.Run{}, err
	}

	run := root.Run{
		ID:      id,
		Created: rec.Created,
		Method:  rec.Method,
		Elapsed: time.Duration(rec.ElapsedMS * float64(time.Millisecond)),
	}
	if err := json.Unmarshal(rec.Settings, &run.Settings); err != nil {
		return root.Run{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal(rec.Report, &run.Report); err != nil {
		return root.Run{}, fmt.Errorf("decode report: %w", err)
	}
	return run, nil
}

// List returns the newest records first, at most limit of them.
func (a *Archive) List(limit int) ([]RunRecord, error) {
	var recs []RunRecord
	result := a.db.Omit("settings", "report").Order("created desc").Limit(limit).Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return recs, nil
}
