package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frcoutreach/outreachnet/pkg/config"
	"github.com/frcoutreach/outreachnet/pkg/logging"
)

// zapWriter adapts zap.Logger to logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// GormStore stores each collection as a table.
type GormStore struct {
	db     *gorm.DB
	clock  *Clock
	driver string
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "DEBUG", "debug":
		return logger.Info
	case "INFO", "info":
		return logger.Warn
	case "WARN", "warn", "WARNING", "warning":
		return logger.Error
	case "ERROR", "error":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// OpenGorm connects to postgres or sqlite depending on cfg.Driver.
func OpenGorm(cfg *config.StoreConfig, logLevel string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", cfg.Driver)
	}

	gormLogger := logger.New(
		&zapWriter{logger: logging.WithComponent("docstore")},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// A single connection keeps in-memory databases shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.GetLogger().Info("Database connection established", zap.String("driver", cfg.Driver))

	// postgres timestamps carry microseconds
	return &GormStore{db: db, clock: NewClock(time.Microsecond), driver: cfg.Driver}, nil
}

func (s *GormStore) Driver() string { return s.driver }

// Migrate creates or alters one table per collection.
func (s *GormStore) Migrate(ctx context.Context, collections ...Collection) error {
	for _, c := range collections {
		if err := s.db.WithContext(ctx).Table(c.Name).AutoMigrate(c.Model); err != nil {
			return fmt.Errorf("migrate %s: %w", c.Name, err)
		}
		for _, fields := range c.Indexes {
			if err := s.createIndex(ctx, c.Name, fields, false); err != nil {
				return fmt.Errorf("index %s: %w", c.Name, err)
			}
		}
		for _, fields := range c.Unique {
			if err := s.createIndex(ctx, c.Name, fields, true); err != nil {
				return fmt.Errorf("unique index %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

func (s *GormStore) createIndex(ctx context.Context, table string, fields []string, unique bool) error {
	kind := "INDEX"
	name := "idx_" + table
	if unique {
		kind = "UNIQUE INDEX"
		name = "uniq_" + table
	}
	cols := ""
	for i, f := range fields {
		if !validField(f) {
			return ErrInvalidQuery
		}
		name += "_" + f
		if i > 0 {
			cols += ", "
		}
		cols += f
	}
	return s.db.WithContext(ctx).Exec(fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, name, table, cols)).Error
}

func (s *GormStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	id := doc.DocMeta().ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *GormStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if id == "" {
		return ErrInvalidQuery
	}
	stamp(doc, id, s.clock.Now())
	if err := s.db.WithContext(ctx).Table(collection).Create(doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, collection, id string, dest Document) error {
	err := s.db.WithContext(ctx).Table(collection).Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) where(collection string, filters []Eq) *gorm.DB {
	tx := s.db.Table(collection)
	for _, f := range filters {
		tx = tx.Where(fmt.Sprintf("%s = ?", f.Field), f.Value)
	}
	return tx
}

func (s *GormStore) Find(ctx context.Context, collection string, q Query, dest interface{}) error {
	if err := validateQuery(q); err != nil {
		return err
	}
	if v := reflect.ValueOf(dest); v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return ErrInvalidQuery
	}

	tx := s.where(collection, q.Filters).WithContext(ctx)
	dir := "ASC"
	cmp := ">"
	if q.Desc {
		dir = "DESC"
		cmp = "<"
	}
	if q.After != nil {
		at := q.After.At.UTC()
		tx = tx.Where(
			fmt.Sprintf("(created_at %s ? OR (created_at = ? AND id %s ?))", cmp, cmp),
			at, at, q.After.ID,
		)
	}
	tx = tx.Order("created_at " + dir).Order("id " + dir)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx.Find(dest).Error
}

func (s *GormStore) Count(ctx context.Context, collection string, filters ...Eq) (int64, error) {
	if err := validateQuery(Query{Filters: filters}); err != nil {
		return 0, err
	}
	var n int64
	err := s.where(collection, filters).WithContext(ctx).Count(&n).Error
	return n, err
}

func (s *GormStore) Update(ctx context.Context, collection, id string, p Patch) (time.Time, error) {
	if err := validatePatch(p); err != nil {
		return time.Time{}, err
	}

	set := make(map[string]interface{}, len(p.Set)+2)
	for k, v := range p.Set {
		set[k] = v
	}
	set["version"] = gorm.Expr("version + 1")
	var touched time.Time
	if p.Touch {
		touched = s.clock.Now()
		set["updated_at"] = touched
	}

	tx := s.db.WithContext(ctx).Table(collection).Where("id = ?", id)
	if p.IfVersion > 0 {
		tx = tx.Where("version = ?", p.IfVersion)
	}
	res := tx.Updates(set)
	if res.Error != nil {
		return time.Time{}, res.Error
	}
	if res.RowsAffected > 0 {
		return touched, nil
	}

	n, err := s.Count(ctx, collection, Eq{Field: "id", Value: id})
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, ErrNotFound
	}
	return time.Time{}, ErrConflict
}

// Health checks database health
func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
