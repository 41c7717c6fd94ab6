package domain

import (
	"context"
	"errors"
)

type Service interface {
	Get(ctx context.Context, id string) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
	// DefaultFreePlan resolves the free-quota profile applied to anonymous
	// callers and to users without an active package.
	DefaultFreePlan(ctx context.Context) (*Plan, error)
}

var (
	ErrInvalidID    = errors.New("invalid_plan_id")
	ErrInvalidCode  = errors.New("invalid_plan_code")
	ErrPlanNotFound = errors.New("plan_not_found")
)
