package workflow

import (
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

// cleanList trims values and drops blanks and duplicates, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// SetCatalogs replaces the category, brand and retirement reason lists.
// A nil list keeps its current values.
func (s *Service) SetCatalogs(ctx context.Context, actor Actor, in model.Catalogs) (c model.Catalogs, err error) {
	ctx, finish := s.start(ctx, "set_catalogs", "", actor)
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageConfig); err != nil {
		return c, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		cats := tx.Catalogs()
		if in.Categories != nil {
			cats.Categories = cleanList(in.Categories)
		}
		if in.Brands != nil {
			cats.Brands = cleanList(in.Brands)
		}
		if in.RetirementReasons != nil {
			cats.RetirementReasons = cleanList(in.RetirementReasons)
		}
		c = *cats
		return tx.Emit(state.EventEdited, state.SubjectConfig, 0, actor.Email, s.now(), c)
	})
	return c, err
}

var attributeKinds = []string{model.AttributeText, model.AttributeNumber, model.AttributeDate}

func normalizeAttribute(a model.CustomAttribute) (model.CustomAttribute, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Kind == "" {
		a.Kind = model.AttributeText
	}
	if a.Name == "" {
		return a, validationf("attribute name is required")
	}
	if !slices.Contains(attributeKinds, a.Kind) {
		return a, validationf("unknown attribute kind %q", a.Kind)
	}
	return a, nil
}

func attributeNameTaken(attrs []model.CustomAttribute, name string, except int64) bool {
	return slices.ContainsFunc(attrs, func(a model.CustomAttribute) bool {
		return a.ID != except && strings.EqualFold(a.Name, name)
	})
}

// CreateAttribute defines a new custom item attribute.
func (s *Service) CreateAttribute(ctx context.Context, actor Actor, in model.CustomAttribute) (a model.CustomAttribute, err error) {
	ctx, finish := s.start(ctx, "create_attribute", "", actor)
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageConfig); err != nil {
		return a, err
	}
	if a, err = normalizeAttribute(in); err != nil {
		return model.CustomAttribute{}, err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		if attributeNameTaken(tx.View().Attributes, a.Name, 0) {
			return conflictf("attribute %q already exists", a.Name)
		}
		a.ID = tx.NextID(state.BucketAttributes)
		attrs := tx.Attributes()
		*attrs = append(*attrs, a)
		return tx.Emit(state.EventCreated, state.SubjectConfig, a.ID, actor.Email, s.now(), a)
	})
	return a, err
}

// UpdateAttribute changes a custom attribute definition.
func (s *Service) UpdateAttribute(ctx context.Context, actor Actor, id int64, in model.CustomAttribute) (a model.CustomAttribute, err error) {
	ctx, finish := s.start(ctx, "update_attribute", "", actor, attribute.Int64("attribute.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageConfig); err != nil {
		return a, err
	}
	if a, err = normalizeAttribute(in); err != nil {
		return model.CustomAttribute{}, err
	}
	a.ID = id

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		if attributeNameTaken(tx.View().Attributes, a.Name, id) {
			return conflictf("attribute %q already exists", a.Name)
		}
		if !state.Patch(*tx.Attributes(), id, func(p *model.CustomAttribute) { *p = a }) {
			return notFoundf("attribute %d", id)
		}
		return tx.Emit(state.EventEdited, state.SubjectConfig, id, actor.Email, s.now(), a)
	})
	return a, err
}

// DeleteAttribute removes a custom attribute definition. Values already
// stored on items are kept.
func (s *Service) DeleteAttribute(ctx context.Context, actor Actor, id int64) (err error) {
	ctx, finish := s.start(ctx, "delete_attribute", "", actor, attribute.Int64("attribute.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageConfig); err != nil {
		return err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		attrs := tx.Attributes()
		var ok bool
		if *attrs, ok = state.Remove(*attrs, id); !ok {
			return notFoundf("attribute %d", id)
		}
		return tx.Emit(state.EventDeleted, state.SubjectConfig, id, actor.Email, s.now(), nil)
	})
	return err
}
