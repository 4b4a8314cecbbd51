// Package postgresql wraps pgxpool behind the lifecycle Start/Stop
// contract. The pool itself is created on Start; construction only
// parses and pins configuration.
package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	pgxgoogleuuid "github.com/vgarvardt/pgx-google-uuid/v5"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

var ErrAlreadyStarted = errors.New("postgresql client already started")

type Client struct {
	logger zerolog.Logger
	config *pgxpool.Config
	Driver *pgxpool.Pool
}

type ClientOptions struct {
	Host                    string
	Port                    uint16
	Database                string
	Username                string
	Password                util.Secret
	PoolMinConns            int32
	PoolMaxConns            int32
	ApplicationInstanceName string
	Logger                  zerolog.Logger
}

func NewClient(options ClientOptions) (*Client, error) {
	errorb := oops.
		In(util.GetFunctionName()).
		Code(perr.ECONFIG)

	url := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		options.Username, string(options.Password), options.Host, options.Port, options.Database,
	)

	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errorb.Wrapf(err, "failed to parse database url for '%s@%s:%d/%s'",
			options.Username, options.Host, options.Port, options.Database)
	}

	config.MinConns = options.PoolMinConns
	config.MaxConns = options.PoolMaxConns
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnLifetimeJitter = 5 * time.Minute
	config.MaxConnIdleTime = 10 * time.Minute
	config.ConnConfig.ConnectTimeout = 5 * time.Second
	config.ConnConfig.RuntimeParams["application_name"] = options.ApplicationInstanceName
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"
	config.ConnConfig.RuntimeParams["datestyle"] = "ISO"
	config.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxgoogleuuid.Register(conn.TypeMap())
		return nil
	}

	return &Client{
		logger: options.Logger,
		config: config,
		Driver: nil,
	}, nil
}

func (c *Client) Start(ctx context.Context) error {
	if c.Driver != nil {
		return ErrAlreadyStarted
	}

	pool, err := pgxpool.NewWithConfig(ctx, c.config)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINIT).
			Wrapf(err, "failed to start postgresql client")
	}

	c.Driver = pool
	return nil
}

func (c *Client) Stop(_ context.Context) {
	if c.Driver == nil {
		c.logger.Warn().Msg("PostgreSQL client already stopped")
		return
	}

	c.Driver.Close()
	c.Driver = nil
}
