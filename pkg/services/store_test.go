package services_test

import (
	"testing"

	"github.com/dope-context/dope/pkg/database"
	"github.com/dope-context/dope/pkg/services"
	"github.com/dope-context/dope/test/util"
)

// newTestStore builds a store over an isolated per-test schema.
func newTestStore(t *testing.T) *services.Store {
	t.Helper()
	db := util.SetupTestDatabase(t)
	return services.NewStore(database.NewClientFromDB(db), nil)
}
