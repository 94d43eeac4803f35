package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"github.com/smallbiznis/tradeway/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const clientSavePoint = "client_insert"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        clientdomain.Repository
	CatalogRepo catalogdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        clientdomain.Repository
	catalogRepo catalogdomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("client.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
	}
}

func NewService(svc *Service) clientdomain.Service { return svc }

func NewDirectory(svc *Service) clientdomain.Directory { return svc }

func (s *Service) Create(ctx context.Context, req clientdomain.CreateClientRequest) (clientdomain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return clientdomain.Client{}, clientdomain.ErrInvalidOrganization
	}

	userID, err := parseID(req.UserID)
	if err != nil {
		return clientdomain.Client{}, clientdomain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return clientdomain.Client{}, clientdomain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return clientdomain.Client{}, clientdomain.ErrInvalidEmail
	}

	var levelID *snowflake.ID
	if strings.TrimSpace(req.LevelID) != "" {
		id, err := s.checkLevel(ctx, orgID, req.LevelID)
		if err != nil {
			return clientdomain.Client{}, err
		}
		levelID = &id
	}

	now := s.clock.Now()
	client := clientdomain.Client{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Name:      name,
		Email:     email,
		LevelID:   levelID,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return clientdomain.Client{}, clientdomain.ErrAlreadyExists
		}
		return clientdomain.Client{}, err
	}
	return client, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (clientdomain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return clientdomain.Client{}, clientdomain.ErrInvalidOrganization
	}
	clientID, err := parseID(id)
	if err != nil {
		return clientdomain.Client{}, clientdomain.ErrInvalidID
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if client == nil {
		return clientdomain.Client{}, clientdomain.ErrNotFound
	}
	return *client, nil
}

func (s *Service) SetLevel(ctx context.Context, id string, levelID string) (clientdomain.Client, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return clientdomain.Client{}, clientdomain.ErrInvalidOrganization
	}
	clientID, err := parseID(id)
	if err != nil {
		return clientdomain.Client{}, clientdomain.ErrInvalidID
	}

	var level *snowflake.ID
	if strings.TrimSpace(levelID) != "" {
		checked, err := s.checkLevel(ctx, orgID, levelID)
		if err != nil {
			return clientdomain.Client{}, err
		}
		level = &checked
	}

	client, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if client == nil {
		return clientdomain.Client{}, clientdomain.ErrNotFound
	}
	if err := s.repo.UpdateLevel(ctx, s.db, orgID, clientID, level); err != nil {
		return clientdomain.Client{}, err
	}
	client.LevelID = level
	return *client, nil
}

func (s *Service) Find(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) (*clientdomain.Client, error) {
	return s.repo.FindByID(ctx, tx, orgID, id)
}

func (s *Service) EnsureInOrg(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, person clientdomain.Client) (*clientdomain.Client, error) {
	if person.UserID == 0 {
		return nil, clientdomain.ErrInvalidUser
	}

	existing, err := s.repo.FindByUser(ctx, tx, orgID, person.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	client := &clientdomain.Client{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    person.UserID,
		Name:      person.Name,
		Email:     person.Email,
		Metadata:  datatypes.JSONMap{"source_organization_id": person.OrgID.String()},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.SavePoint(clientSavePoint).Error; err != nil {
		return nil, err
	}
	err = s.repo.Insert(ctx, tx, client)
	if err == nil {
		s.log.Info("client created for organization",
			zap.String("org_id", orgID.String()),
			zap.String("user_id", person.UserID.String()),
			zap.String("client_id", client.ID.String()),
		)
		return client, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, err
	}
	if err := tx.RollbackTo(clientSavePoint).Error; err != nil {
		return nil, err
	}
	return s.repo.FindByUser(ctx, tx, orgID, person.UserID)
}

func (s *Service) checkLevel(ctx context.Context, orgID snowflake.ID, value string) (snowflake.ID, error) {
	id, err := parseID(value)
	if err != nil {
		return 0, clientdomain.ErrInvalidLevel
	}
	level, err := s.catalogRepo.FindLevel(ctx, s.db, orgID, id)
	if err != nil {
		return 0, err
	}
	if level == nil {
		return 0, clientdomain.ErrInvalidLevel
	}
	return id, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, clientdomain.ErrInvalidID
	}
	return id, nil
}
