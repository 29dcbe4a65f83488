package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provenlabs/opsledger/internal/domain"
)

type Store struct {
	pool      *pgxpool.Pool
	users     *UserRepo
	assets    *AssetRepo
	tickets   *TicketRepo
	runs      *RunRepo
	artifacts *ArtifactRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:      pool,
		users:     NewUserRepo(pool),
		assets:    NewAssetRepo(pool),
		tickets:   NewTicketRepo(pool),
		runs:      NewRunRepo(pool),
		artifacts: NewArtifactRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() domain.UserRepository         { return s.users }
func (s *Store) Assets() domain.AssetRepository       { return s.assets }
func (s *Store) Tickets() domain.TicketRepository     { return s.tickets }
func (s *Store) Runs() domain.RunRepository           { return s.runs }
func (s *Store) Artifacts() domain.ArtifactRepository { return s.artifacts }
