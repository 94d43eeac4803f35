package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        tierdomain.Repository
	CatalogRepo catalogdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        tierdomain.Repository
	catalogRepo catalogdomain.Repository
}

func New(p Params) tierdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("tierpricing.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
	}
}

func (s *Service) Create(ctx context.Context, req tierdomain.CreateRequest) (*tierdomain.Response, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, tierdomain.ErrInvalidName
	}

	countries, err := normalizeCountries(req.Countries)
	if err != nil {
		return nil, err
	}

	productIDs, err := parseIDs(req.ProductIDs, tierdomain.ErrInvalidProduct)
	if err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return nil, tierdomain.ErrInvalidProduct
	}
	for _, id := range productIDs {
		ok, err := s.itemExists(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, tierdomain.ErrInvalidProduct
		}
	}

	targets := make([]string, 0, len(req.TargetedClientIDs)+len(req.Customers)+len(req.Clients))
	targets = append(targets, req.TargetedClientIDs...)
	targets = append(targets, req.Customers...)
	targets = append(targets, req.Clients...)
	clientIDs, err := parseIDs(targets, tierdomain.ErrInvalidClient)
	if err != nil {
		return nil, err
	}

	steps, err := normalizeSteps(req.Steps)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rule := &tierdomain.Rule{
		ID:                s.genID.Generate(),
		OrgID:             orgID,
		Name:              name,
		Countries:         countries,
		ProductIDs:        productIDs,
		Steps:             steps,
		TargetedClientIDs: clientIDs,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, rule); err != nil {
		return nil, err
	}

	s.log.Info("tier pricing rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("org_id", orgID.String()),
		zap.Int("steps", len(steps)),
		zap.Int("targeted_clients", len(clientIDs)),
	)
	return toResponse(rule), nil
}

func (s *Service) List(ctx context.Context) ([]tierdomain.Response, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]tierdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*tierdomain.Response, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ruleID, err := parseID(id)
	if err != nil {
		return nil, tierdomain.ErrInvalidID
	}

	rule, err := s.repo.FindByID(ctx, s.db, orgID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, tierdomain.ErrNotFound
	}
	return toResponse(rule), nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}

	ruleID, err := parseID(id)
	if err != nil {
		return tierdomain.ErrInvalidID
	}

	rule, err := s.repo.FindByID(ctx, s.db, orgID, ruleID)
	if err != nil {
		return err
	}
	if rule == nil {
		return tierdomain.ErrNotFound
	}
	return s.repo.SetActive(ctx, s.db, orgID, ruleID, false)
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, tierdomain.ErrInvalidOrganization
	}
	return orgID, nil
}

// itemExists accepts both product and variation ids.
func (s *Service) itemExists(ctx context.Context, orgID, id snowflake.ID) (bool, error) {
	product, err := s.catalogRepo.FindProduct(ctx, s.db, orgID, id)
	if err != nil {
		return false, err
	}
	if product != nil {
		return true, nil
	}
	variation, err := s.catalogRepo.FindVariationByID(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	return variation != nil && variation.OrgID == orgID, nil
}

func normalizeCountries(values []string) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		country := strings.ToUpper(strings.TrimSpace(value))
		if country == "" {
			return nil, tierdomain.ErrInvalidCountry
		}
		if _, ok := seen[country]; ok {
			continue
		}
		seen[country] = struct{}{}
		out = append(out, country)
	}
	if len(out) == 0 {
		return nil, tierdomain.ErrInvalidCountry
	}
	return out, nil
}

// normalizeSteps sorts steps by From and rejects overlapping or malformed steps.
func normalizeSteps(values []tierdomain.StepRequest) ([]tierdomain.Step, error) {
	if len(values) == 0 {
		return nil, tierdomain.ErrInvalidSteps
	}
	steps := make([]tierdomain.Step, 0, len(values))
	for _, value := range values {
		if value.From < 1 || (value.To != 0 && value.To < value.From) || value.Price.IsNegative() {
			return nil, tierdomain.ErrInvalidSteps
		}
		steps = append(steps, tierdomain.Step{From: value.From, To: value.To, Price: value.Price})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].From < steps[j].From })
	for i := 1; i < len(steps); i++ {
		prev := steps[i-1]
		if prev.To == 0 || steps[i].From <= prev.To {
			return nil, tierdomain.ErrInvalidSteps
		}
	}
	return steps, nil
}

func toResponse(r *tierdomain.Rule) *tierdomain.Response {
	return &tierdomain.Response{
		ID:                r.ID.String(),
		OrganizationID:    r.OrgID.String(),
		Name:              r.Name,
		Countries:         append([]string(nil), r.Countries...),
		ProductIDs:        idStrings(r.ProductIDs),
		Steps:             append([]tierdomain.Step(nil), r.Steps...),
		TargetedClientIDs: idStrings(r.TargetedClientIDs),
		Active:            r.Active,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func idStrings(ids []snowflake.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseIDs(values []string, invalid error) ([]snowflake.ID, error) {
	seen := make(map[snowflake.ID]struct{}, len(values))
	out := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil || id == 0 {
			return nil, invalid
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
