package cascade

import (
	"context"

	"github.com/bwmarrin/snowflake"
	connectiondomain "github.com/smallbiznis/tirta/internal/connection/domain"
	customerdomain "github.com/smallbiznis/tirta/internal/customer/domain"
	"gorm.io/gorm"
)

// Lookup resolves the connection a reading belongs to and its owner. Both
// methods return nil, nil when the record does not exist.
type Lookup interface {
	Connection(ctx context.Context, id snowflake.ID) (*connectiondomain.Connection, error)
	User(ctx context.Context, id snowflake.ID) (*customerdomain.User, error)
}

// StoreLookup reads connections and users from the database.
type StoreLookup struct {
	DB          *gorm.DB
	Connections connectiondomain.Repository
	Users       customerdomain.Repository
}

func (l StoreLookup) Connection(ctx context.Context, id snowflake.ID) (*connectiondomain.Connection, error) {
	return l.Connections.FindByID(ctx, l.DB, id)
}

func (l StoreLookup) User(ctx context.Context, id snowflake.ID) (*customerdomain.User, error) {
	return l.Users.FindByID(ctx, l.DB, id)
}
