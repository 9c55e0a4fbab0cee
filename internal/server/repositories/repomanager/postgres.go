package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/newsflow/internal/server/migrations"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/groups"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/held"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/peers"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
	db       *sql.DB
	articles articles.Repository
	groups   groups.Repository
	users    users.Repository
	peers    peers.Repository
	held     held.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

func (m *PostgresRepositoryManager) Articles() articles.Repository {
	return m.articles
}

func (m *PostgresRepositoryManager) Groups() groups.Repository {
	return m.groups
}

func (m *PostgresRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *PostgresRepositoryManager) Peers() peers.Repository {
	return m.peers
}

func (m *PostgresRepositoryManager) Held() held.Repository {
	return m.held
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager(ctx context.Context, dsn string) (RepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:       db,
		articles: articles.NewPostgresRepository(db),
		groups:   groups.NewPostgresRepository(db),
		users:    users.NewPostgresRepository(db),
		peers:    peers.NewPostgresRepository(db),
		held:     held.NewPostgresRepository(db),
	}

	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
