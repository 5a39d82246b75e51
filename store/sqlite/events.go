package sqlite

import (
	"context"

	core "github.com/SmonkeyMonkey/abracadabra"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventStore persists engine events in a sqlite database.
type EventStore struct {
	db *gorm.DB
}

type eventRow struct {
	Id        string          `gorm:"primaryKey;size:36"`
	Kind      string          `gorm:"index:idx_events_scope_kind;size:32"`
	Scope     string          `gorm:"index:idx_events_scope_kind;size:36"`
	Mint      string          `gorm:"size:64"`
	From      string          `gorm:"column:from_party;size:128"`
	To        string          `gorm:"column:to_party;size:128"`
	Amount    decimal.Decimal `gorm:"type:text"`
	Share     decimal.Decimal `gorm:"type:text"`
	Extra     core.EventExtra `gorm:"type:text"`
	CreatedAt int64           `gorm:"index"`
}

func (eventRow) TableName() string {
	return "events"
}

// Open connects to dsn and migrates the event table.
func Open(dsn string) (*EventStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is empty")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	return New(db)
}

func New(db *gorm.DB) (*EventStore, error) {
	if err := db.AutoMigrate(&eventRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate events")
	}
	return &EventStore{db: db}, nil
}

func (s *EventStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *EventStore) CreateEvent(ctx context.Context, event *core.Event) error {
	row := &eventRow{
		Id:        event.Id.String(),
		Kind:      string(event.Kind),
		Scope:     event.Scope.String(),
		Mint:      event.Mint,
		From:      event.From,
		To:        event.To,
		Amount:    event.Amount,
		Share:     event.Share,
		Extra:     event.Extra,
		CreatedAt: event.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// ListEvents returns the newest events of kind recorded against scope. An
// empty kind matches every kind.
func (s *EventStore) ListEvents(ctx context.Context, scope uuid.UUID, kind core.EventKind, limit int) ([]*core.Event, error) {
	query := s.db.WithContext(ctx).Where("scope = ?", scope.String())
	if kind != "" {
		query = query.Where("kind = ?", string(kind))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*eventRow
	if err := query.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*core.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.event()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *eventRow) event() (*core.Event, error) {
	id, err := uuid.FromString(r.Id)
	if err != nil {
		return nil, errors.Wrapf(err, "event id %s", r.Id)
	}
	scope, err := uuid.FromString(r.Scope)
	if err != nil {
		return nil, errors.Wrapf(err, "event %s scope", r.Id)
	}
	extra := r.Extra
	if extra == nil {
		extra = core.EventExtra{}
	}
	return &core.Event{
		Id:        id,
		Kind:      core.EventKind(r.Kind),
		Scope:     scope,
		Mint:      r.Mint,
		From:      r.From,
		To:        r.To,
		Amount:    r.Amount,
		Share:     r.Share,
		Extra:     extra,
		CreatedAt: r.CreatedAt,
	}, nil
}

var _ core.EventStore = (*EventStore)(nil)
