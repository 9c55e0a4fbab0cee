package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/newsflow/internal/server/repositories/articles"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/groups"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/held"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/peers"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/users"
)

// RepositoryManager bundles all persistence contracts over one database
// handle. The engine only ever sees these interfaces; backend choice and
// schema live behind them.
type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Close() error
	Articles() articles.Repository
	Groups() groups.Repository
	Users() users.Repository
	Peers() peers.Repository
	Held() held.Repository
}
