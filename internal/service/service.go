package service

import (
	"context"
	"errors"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/repository"
)

// SpotObserver is told about spot status changes after they are committed.
// Implementations must not block for long and cannot fail the caller.
type SpotObserver interface {
	SpotChanged(ctx context.Context, ev domain.SpotStatusChange)
}

// Observers fans a change out to every observer in order.
type Observers []SpotObserver

func (o Observers) SpotChanged(ctx context.Context, ev domain.SpotStatusChange) {
	for _, obs := range o {
		if obs != nil {
			obs.SpotChanged(ctx, ev)
		}
	}
}

// storageErr passes AppErrors through and turns anything else into a storage error.
func storageErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperror.KindOf(err) != "" {
		return err
	}
	return apperror.Storage(err, op)
}

// inTx runs fn in one transaction. Failures to begin or commit, and a
// cancelled context, come back as storage errors like any other.
func inTx(ctx context.Context, store repository.Store, op string, fn func(tx repository.Repositories) error) error {
	return storageErr(store.WithinTx(ctx, fn), op)
}

func notFoundOr(err error, message, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return storageErr(err, op)
}
