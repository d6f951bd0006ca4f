package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/pkg/db"
	"github.com/lgndcraft2/giving-tree/pkg/money"
	"github.com/lgndcraft2/giving-tree/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Rules *config.CatalogRulesHolder
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	rules *config.CatalogRulesHolder
	clock clock.Clock
}

func New(p Params) domain.Service {
	rules := p.Rules
	if rules == nil {
		rules = config.NewStaticCatalogRules(config.DefaultCatalogRules())
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
		rules: rules,
		clock: clk,
	}
}

func (s *Service) CreateCharity(ctx context.Context, req domain.CreateCharityRequest) (domain.CharityWithWishes, error) {
	input, err := s.validateCharity(req.CharityInput, false)
	if err != nil {
		return domain.CharityWithWishes{}, err
	}

	now := s.clock.Now()
	charity := domain.Charity{
		ID:          s.genID.Generate(),
		Name:        input.name,
		Slug:        slug.Make(input.name),
		Description: input.description,
		Website:     input.website,
		LogoURL:     input.logoURL,
		ImageURL:    input.imageURL,
		Active:      req.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	wishes := make([]domain.Wish, 0, len(input.wishes))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertCharity(ctx, tx, &charity); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCharity
			}
			return err
		}
		for _, in := range input.wishes {
			wish := s.newWish(charity.ID, in)
			if err := s.repo.InsertWish(ctx, tx, &wish); err != nil {
				return err
			}
			wishes = append(wishes, wish)
		}
		return nil
	})
	if err != nil {
		return domain.CharityWithWishes{}, err
	}

	s.log.Info("charity created",
		zap.String("charity_id", charity.ID.String()),
		zap.Int("wishes", len(wishes)),
	)
	return domain.CharityWithWishes{Charity: charity, Wishes: wishes}, nil
}

func (s *Service) UpdateCharity(ctx context.Context, req domain.UpdateCharityRequest) (domain.CharityWithWishes, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.CharityWithWishes{}, err
	}
	input, err := s.validateCharity(req.CharityInput, true)
	if err != nil {
		return domain.CharityWithWishes{}, err
	}

	var result domain.CharityWithWishes
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charity, err := s.repo.FindCharityForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if charity == nil {
			return domain.ErrCharityNotFound
		}

		now := s.clock.Now()
		charity.Name = input.name
		charity.Slug = slug.Make(input.name)
		charity.Description = input.description
		charity.Website = input.website
		charity.LogoURL = input.logoURL
		charity.ImageURL = input.imageURL
		charity.Active = req.Active
		charity.UpdatedAt = now
		if err := s.repo.UpdateCharity(ctx, tx, charity); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCharity
			}
			return err
		}

		existing, err := s.repo.ListWishesByCharity(ctx, tx, charity.ID)
		if err != nil {
			return err
		}
		owned := make(map[snowflake.ID]domain.Wish, len(existing))
		for _, w := range existing {
			owned[w.ID] = w
		}

		kept := make(map[snowflake.ID]struct{}, len(input.wishes))
		wishes := make([]domain.Wish, 0, len(input.wishes))
		for _, in := range input.wishes {
			if in.id == 0 {
				wish := s.newWish(charity.ID, in)
				if err := s.repo.InsertWish(ctx, tx, &wish); err != nil {
					return err
				}
				wishes = append(wishes, wish)
				continue
			}

			current, ok := owned[in.id]
			if !ok {
				return domain.ErrWishNotOwned
			}
			current.Name = in.name
			current.Description = in.description
			current.UnitPrice = in.unitPrice
			current.Quantity = in.quantity
			current.TargetAmount = in.target
			current.Fulfilled = current.CurrentAmount >= in.target
			current.UpdatedAt = now
			if err := s.repo.UpdateWishDetails(ctx, tx, &current); err != nil {
				return err
			}
			kept[current.ID] = struct{}{}
			wishes = append(wishes, current)
		}

		for _, w := range existing {
			if _, ok := kept[w.ID]; ok {
				continue
			}
			count, err := s.repo.CountPaymentsForWish(ctx, tx, w.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: %s", domain.ErrWishHasPayments, w.ID.String())
			}
			if err := s.repo.DeleteWish(ctx, tx, w.ID); err != nil {
				return err
			}
		}

		result = domain.CharityWithWishes{Charity: *charity, Wishes: wishes}
		return nil
	})
	if err != nil {
		return domain.CharityWithWishes{}, err
	}

	s.log.Info("charity updated",
		zap.String("charity_id", result.Charity.ID.String()),
		zap.Int("wishes", len(result.Wishes)),
	)
	return result, nil
}

func (s *Service) ToggleCharityStatus(ctx context.Context, id snowflake.ID) (domain.Charity, error) {
	if id == 0 {
		return domain.Charity{}, domain.ErrInvalidID
	}

	var charity *domain.Charity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		charity, err = s.repo.FindCharityForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if charity == nil {
			return domain.ErrCharityNotFound
		}
		charity.Active = !charity.Active
		charity.UpdatedAt = s.clock.Now()
		return s.repo.SetCharityActive(ctx, tx, charity.ID, charity.Active, charity.UpdatedAt)
	})
	if err != nil {
		return domain.Charity{}, err
	}
	return *charity, nil
}

func (s *Service) GetCharity(ctx context.Context, id snowflake.ID) (domain.CharityWithWishes, error) {
	charity, err := s.repo.FindCharityByID(ctx, s.db, id)
	if err != nil {
		return domain.CharityWithWishes{}, err
	}
	if charity == nil {
		return domain.CharityWithWishes{}, domain.ErrCharityNotFound
	}
	wishes, err := s.repo.ListWishesByCharity(ctx, s.db, id)
	if err != nil {
		return domain.CharityWithWishes{}, err
	}
	return domain.CharityWithWishes{Charity: *charity, Wishes: wishes}, nil
}

func (s *Service) ListCharities(ctx context.Context) ([]domain.CharitySummary, error) {
	return s.repo.ListCharities(ctx, s.db)
}

func (s *Service) ListWishes(ctx context.Context) ([]domain.WishView, error) {
	return s.repo.ListWishes(ctx, s.db)
}

func (s *Service) FindWishByID(ctx context.Context, id snowflake.ID) (domain.Wish, error) {
	if id == 0 {
		return domain.Wish{}, domain.ErrWishNotFound
	}
	wish, err := s.repo.FindWishByID(ctx, s.db, id)
	if err != nil {
		return domain.Wish{}, err
	}
	if wish == nil {
		return domain.Wish{}, domain.ErrWishNotFound
	}
	return *wish, nil
}

func (s *Service) newWish(charityID snowflake.ID, in wishInput) domain.Wish {
	now := s.clock.Now()
	return domain.Wish{
		ID:           s.genID.Generate(),
		CharityID:    charityID,
		Name:         in.name,
		Description:  in.description,
		UnitPrice:    in.unitPrice,
		Quantity:     in.quantity,
		TargetAmount: in.target,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type charityInput struct {
	name        string
	description string
	website     string
	logoURL     string
	imageURL    string
	wishes      []wishInput
}

type wishInput struct {
	id          snowflake.ID
	name        string
	description string
	quantity    int64
	unitPrice   int64
	target      int64
}

// validateCharity normalizes the request and reports every problem in one
// validation error. Wish ids are only honored on edit.
func (s *Service) validateCharity(in domain.CharityInput, allowWishIDs bool) (charityInput, error) {
	var verr validation.Errors
	out := charityInput{
		name:        strings.TrimSpace(in.Name),
		description: strings.TrimSpace(in.Description),
		website:     strings.TrimSpace(in.Website),
		logoURL:     strings.TrimSpace(in.LogoURL),
		imageURL:    strings.TrimSpace(in.ImageURL),
	}

	for _, f := range []struct{ field, value string }{
		{"name", out.name},
		{"description", out.description},
		{"website", out.website},
		{"logo_url", out.logoURL},
		{"image_url", out.imageURL},
	} {
		if f.value == "" {
			verr.Add(f.field, "required", f.field+" is required")
		}
	}

	rules := s.rules.Get()
	if n := len(in.Wishes); n < rules.MinWishes || n > rules.MaxWishes {
		verr.Add("wishes", "count_out_of_range",
			fmt.Sprintf("a charity must have between %d and %d wishes", rules.MinWishes, rules.MaxWishes))
	}

	seen := make(map[snowflake.ID]struct{}, len(in.Wishes))
	for i, w := range in.Wishes {
		field := fmt.Sprintf("wishes[%d]", i)
		item := wishInput{
			name:        strings.TrimSpace(w.Title),
			description: strings.TrimSpace(w.Description),
			quantity:    w.Quantity,
		}

		if w.ID != "" {
			id, err := parseID(w.ID)
			switch {
			case !allowWishIDs:
				verr.Add(field+".id", "not_allowed", "new wishes cannot carry an id")
			case err != nil:
				verr.Add(field+".id", "invalid", "wish id is invalid")
			default:
				if _, dup := seen[id]; dup {
					verr.Add(field+".id", "duplicate", "wish id appears more than once")
				}
				seen[id] = struct{}{}
				item.id = id
			}
		}

		if item.name == "" {
			verr.Add(field+".title", "required", fmt.Sprintf("wish %d is missing a title", i+1))
		}
		if item.description == "" {
			verr.Add(field+".description", "required", fmt.Sprintf("wish %d is missing a description", i+1))
		}
		if w.Quantity <= 0 {
			verr.Add(field+".quantity", "invalid", fmt.Sprintf("wish %d quantity must be greater than 0", i+1))
		}

		unit, err := money.ToMinor(w.UnitPrice)
		if err != nil || unit <= 0 {
			verr.Add(field+".unit_price", "invalid", fmt.Sprintf("wish %d unit_price must be greater than 0 with at most 2 decimals", i+1))
		}
		item.unitPrice = unit

		if w.TotalPrice.Valid && w.TotalPrice.Decimal.IsPositive() {
			target, err := money.ToMinor(w.TotalPrice.Decimal)
			if err != nil {
				verr.Add(field+".total_price", "invalid", fmt.Sprintf("wish %d total_price has more than 2 decimals", i+1))
			}
			item.target = target
		} else if unit > 0 && w.Quantity > 0 {
			target, err := money.Multiply(unit, w.Quantity)
			if err != nil {
				verr.Add(field+".total_price", "invalid", fmt.Sprintf("wish %d total is too large", i+1))
			}
			item.target = target
		}

		out.wishes = append(out.wishes, item)
	}

	if err := verr.Err(); err != nil {
		return charityInput{}, err
	}
	return out, nil
}

func parseID(value json.Number) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value.String()))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
