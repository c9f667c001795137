// Package store appends priced quotes to a relational database and reads
// them back, newest first.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/config"
	"github.com/jwaldner/bsheat/internal/logger"
)

// QuoteRecord is one priced option request.
type QuoteRecord struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `gorm:"column:created_at;index" json:"created_at"`
	StockPrice   decimal.Decimal `gorm:"column:stock_price;type:decimal(20,8);not null" json:"stock_price"`
	StrikePrice  decimal.Decimal `gorm:"column:strike_price;type:decimal(20,8);not null" json:"strike_price"`
	TimeToExpiry decimal.Decimal `gorm:"column:time_to_expiry;type:decimal(20,8);not null" json:"time_to_expiry"`
	InterestRate decimal.Decimal `gorm:"column:interest_rate;type:decimal(20,8);not null" json:"interest_rate"`
	Volatility   decimal.Decimal `gorm:"column:volatility;type:decimal(20,8);not null" json:"volatility"`
	OptionType   string          `gorm:"column:option_type;type:varchar(4);not null" json:"option_type"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(20,8);not null" json:"price"`
}

// TableName keeps the historical table name.
func (QuoteRecord) TableName() string {
	return "options_pricing"
}

// Quote converts the record back into pricing inputs.
func (r QuoteRecord) Quote() (blackscholes.Quote, error) {
	typ, err := blackscholes.ParseOptionType(r.OptionType)
	if err != nil {
		return blackscholes.Quote{}, err
	}
	return blackscholes.Quote{
		Spot:   r.StockPrice.InexactFloat64(),
		Strike: r.StrikePrice.InexactFloat64(),
		Expiry: r.TimeToExpiry.InexactFloat64(),
		Rate:   r.InterestRate.InexactFloat64(),
		Vol:    r.Volatility.InexactFloat64(),
		Type:   typ,
	}, nil
}

// Store wraps a GORM handle.
type Store struct {
	db *gorm.DB
}

// Open connects with the configured driver and migrates the schema.
func Open(cfg config.StoreConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s store: %w", cfg.Driver, err)
	}
	return New(db)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&QuoteRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate quote table: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveQuote appends one priced quote.
func (s *Store) SaveQuote(ctx context.Context, q blackscholes.Quote, price float64) error {
	rec := &QuoteRecord{
		StockPrice:   decimal.NewFromFloat(q.Spot),
		StrikePrice:  decimal.NewFromFloat(q.Strike),
		TimeToExpiry: decimal.NewFromFloat(q.Expiry),
		InterestRate: decimal.NewFromFloat(q.Rate),
		Volatility:   decimal.NewFromFloat(q.Vol),
		OptionType:   q.Type.String(),
		Price:        decimal.NewFromFloat(price),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		logger.Error.Printf("store.SaveQuote failed for %s S=%v K=%v: %v", q.Type, q.Spot, q.Strike, err)
		return fmt.Errorf("failed to save quote: %w", err)
	}
	logger.Debug.Printf("💾 Saved %s quote #%d price=%s", rec.OptionType, rec.ID, rec.Price.StringFixed(4))
	return nil
}

// RecentQuotes returns up to limit records, newest first.
func (s *Store) RecentQuotes(ctx context.Context, limit int) ([]QuoteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []QuoteRecord
	if err := s.db.WithContext(ctx).Order("created_at desc").Order("id desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return recs, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
