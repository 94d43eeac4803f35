package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tradeway/internal/catalog/repository"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	clientrepo "github.com/smallbiznis/tradeway/internal/client/repository"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"github.com/smallbiznis/tradeway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupClientService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	node := testutil.MustNode(t)
	db := testutil.OpenDB(t, &clientdomain.Client{}, &catalogdomain.AffiliateLevel{})
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		Repo:        clientrepo.Provide(),
		CatalogRepo: catalogrepo.Provide(),
	})
	return svc, db, node
}

func TestCreateClientValidatesAndRejectsDuplicateUser(t *testing.T) {
	svc, db, node := setupClientService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	levelID := node.Generate()
	require.NoError(t, db.Create(&catalogdomain.AffiliateLevel{ID: levelID, OrgID: orgID, Name: "silver", RequiredPoints: 100}).Error)

	userID := node.Generate()
	client, err := svc.Create(ctx, clientdomain.CreateClientRequest{
		UserID:  userID.String(),
		Name:    " Ada ",
		Email:   "ada@example.com",
		LevelID: levelID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", client.Name)
	assert.Equal(t, levelID, client.Level())

	_, err = svc.Create(ctx, clientdomain.CreateClientRequest{UserID: userID.String(), Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, clientdomain.ErrAlreadyExists)

	_, err = svc.Create(ctx, clientdomain.CreateClientRequest{UserID: node.Generate().String(), Name: "Bob", Email: "bob"})
	assert.ErrorIs(t, err, clientdomain.ErrInvalidEmail)

	_, err = svc.Create(ctx, clientdomain.CreateClientRequest{UserID: node.Generate().String(), Name: "Bob", Email: "bob@example.com", LevelID: "42"})
	assert.ErrorIs(t, err, clientdomain.ErrInvalidLevel)

	got, err := svc.GetByID(ctx, client.ID.String())
	require.NoError(t, err)
	assert.Equal(t, client.UserID, got.UserID)

	cleared, err := svc.SetLevel(ctx, client.ID.String(), "")
	require.NoError(t, err)
	assert.Zero(t, cleared.Level())
}

func TestEnsureInOrgIsIdempotent(t *testing.T) {
	svc, db, node := setupClientService(t)
	person := clientdomain.Client{ID: node.Generate(), OrgID: node.Generate(), UserID: node.Generate(), Name: "Ada", Email: "ada@example.com"}
	upstream := node.Generate()

	var first, second *clientdomain.Client
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = svc.EnsureInOrg(context.Background(), tx, upstream, person)
		return err
	})
	require.NoError(t, err)
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = svc.EnsureInOrg(context.Background(), tx, upstream, person)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, upstream, second.OrgID)
	assert.Equal(t, person.UserID, second.UserID)
	assert.NotEqual(t, person.ID, second.ID)
}
