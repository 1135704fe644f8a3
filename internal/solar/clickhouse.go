package solar

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

// ClickHouseOptions locates the OMNI tables written by omni-ingest.
type ClickHouseOptions struct {
	Host     string
	Database string
	User     string
	Password string
	Logger   *zap.SugaredLogger
}

// TableName returns the ClickHouse table holding samples of cadence.
func TableName(cadence Cadence) string {
	switch cadence {
	case FiveMinute:
		return "omni_5min"
	case OneMinute:
		return "omni_1min"
	default:
		return "omni_hourly"
	}
}

// selecter is the part of driver.Conn used for reads.
type selecter interface {
	Select(ctx context.Context, dest any, query string, args ...any) error
}

// ClickHouseSource fetches solar wind windows from ClickHouse.
type ClickHouseSource struct {
	conn     selecter
	closer   func() error
	database string
	logger   *zap.SugaredLogger
}

// OpenClickHouseSource connects and pings the server.
func OpenClickHouseSource(ctx context.Context, opts ClickHouseOptions) (*ClickHouseSource, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Host},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open %s: %w", opts.Host, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", opts.Host, err)
	}
	opts.Logger.Infof("Connected to ClickHouse at %s (database %s)", opts.Host, opts.Database)
	return &ClickHouseSource{conn: conn, closer: conn.Close, database: opts.Database, logger: opts.Logger}, nil
}

// Close releases the connection.
func (s *ClickHouseSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// selectQuery builds the window query. Only hourly tables carry F10.7.
func selectQuery(database string, cadence Cadence) string {
	f107 := "f107"
	if cadence != Hourly {
		f107 = "nan AS f107"
	}
	return fmt.Sprintf(
		"SELECT epoch, bx_gse, by_gsm, bz_gsm, flow_speed, proton_density, %s FROM %s.%s WHERE epoch >= ? AND epoch < ? ORDER BY epoch",
		f107, database, TableName(cadence))
}

// Fetch selects [start, end) from the cadence table.
func (s *ClickHouseSource) Fetch(ctx context.Context, start, end time.Time, cadence Cadence) (*Table, error) {
	var records []Record
	query := selectQuery(s.database, cadence)
	if err := s.conn.Select(ctx, &records, query, start.UTC(), end.UTC()); err != nil {
		return nil, fmt.Errorf("select %s: %w", TableName(cadence), err)
	}
	s.logger.Debugf("Selected %d rows from %s.%s", len(records), s.database, TableName(cadence))
	return TableFromRecords(records, cadence), nil
}
