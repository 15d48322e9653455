package service

import (
	"context"
	"errors"
	"fmt"
)

// Service defines a generic service.
type Service any

type Runnable interface{ Run() }

// Stoppable is a service that has something to release on shutdown.
type Stoppable interface {
	Shutdown(ctx context.Context) error
}

// RunnableService defines a service that can be run.
type RunnableService interface {
	Service
	Runnable
	Stoppable
}

// Group is a container for managing a bunch of services.
// Services start in the order they were added and stop in reverse.
type Group struct {
	list []Service
}

func (g *Group) Add(services ...Service) { g.list = append(g.list, services...) }

// AddIf adds services only when the condition holds.
func (g *Group) AddIf(cond bool, services ...Service) {
	if cond {
		g.Add(services...)
	}
}

func (g *Group) Len() int { return len(g.list) }

// Start starts each service in the group.
func (g *Group) Start() {
	for _, s := range g.list {
		if v, ok := s.(Runnable); ok {
			v.Run()
		}
	}
}

// Shutdown terminates a group of services.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(g.list) - 1; i >= 0; i-- {
		s := g.list[i]
		if v, ok := s.(Stoppable); ok {
			if err := v.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, fmt.Errorf("failed to stop [%s]: %w", s, err))
			}
		}
	}
	return errors.Join(errs...)
}
