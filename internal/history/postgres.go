package history

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type drawRecordModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionCode string    `gorm:"size:16;not null;index:idx_draw_records_session,priority:1"`
	Sequence    int       `gorm:"not null;index:idx_draw_records_session,priority:2"`
	Requested   int       `gorm:"not null"`
	PoolSize    int       `gorm:"not null"`
	DrawnAt     time.Time `gorm:"not null"`

	Winners []drawWinnerModel `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

func (drawRecordModel) TableName() string { return "draw_records" }

type drawWinnerModel struct {
	RecordID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position      int       `gorm:"primaryKey;autoIncrement:false"`
	ParticipantID string    `gorm:"not null"`
	Name          string    `gorm:"not null"`
}

func (drawWinnerModel) TableName() string { return "draw_winners" }

type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects through gorm and migrates the ledger tables.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres history: empty dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&drawRecordModel{}, &drawWinnerModel{}); err != nil {
		return nil, fmt.Errorf("migrate history tables: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Append(ctx context.Context, rec Record) error {
	model := drawRecordModel{
		ID:          rec.ID,
		SessionCode: rec.SessionCode,
		Sequence:    rec.Sequence,
		Requested:   rec.Requested,
		PoolSize:    rec.PoolSize,
		DrawnAt:     rec.DrawnAt,
		Winners:     make([]drawWinnerModel, len(rec.Winners)),
	}
	for i, w := range rec.Winners {
		model.Winners[i] = drawWinnerModel{RecordID: rec.ID, Position: i, ParticipantID: w.ID, Name: w.Name}
	}

	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert draw record: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, sessionCode string) ([]Record, error) {
	var models []drawRecordModel
	err := p.db.WithContext(ctx).
		Preload("Winners", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("session_code = ?", sessionCode).
		Order("sequence, id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("query draw records: %w", err)
	}

	records := make([]Record, len(models))
	for i, m := range models {
		winners := make([]engine.Participant, len(m.Winners))
		for j, w := range m.Winners {
			winners[j] = engine.Participant{ID: w.ParticipantID, Name: w.Name}
		}
		records[i] = Record{
			ID:          m.ID,
			SessionCode: m.SessionCode,
			Sequence:    m.Sequence,
			Requested:   m.Requested,
			PoolSize:    m.PoolSize,
			Winners:     winners,
			DrawnAt:     m.DrawnAt.UTC(),
		}
	}
	return records, nil
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
