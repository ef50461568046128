// Package directory resolves chat workspaces to ticketing-system tenants.
//
// The directory is not a cache: every lookup is a fresh query against the
// ticketing API, so a tenant that was suspended or disabled a moment ago
// is never served from stale state.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cosmix/deskbridge/internal/ticketing"
	"go.uber.org/zap"
)

// ErrAlreadyEnabled reports a handshake initiation against an app instance
// the customer has already activated. Callers surface this case with its
// own message; every other mismatch gets a generic one.
var ErrAlreadyEnabled = errors.New("app instance is already enabled by the customer")

// Directory finds the app instance linked to a chat workspace.
type Directory struct {
	offering string
	logger   *zap.Logger
}

// New creates a directory for this deployment's app offering.
func New(offering string, logger *zap.Logger) *Directory {
	return &Directory{
		offering: offering,
		logger:   logger,
	}
}

// FindByWorkspace returns the single most-recently-created, enabled,
// non-suspended app instance whose linked workspace matches. Returns
// (nil, nil) when no instance qualifies.
func (d *Directory) FindByWorkspace(ctx context.Context, client *ticketing.Client, workspaceID string) (*ticketing.AppInstance, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}

	instances, err := client.FindAppInstances(ctx, ticketing.AppInstanceFilter{
		OfferingReference: d.offering,
		SlackWorkspaceID:  workspaceID,
		EnabledByCustomer: true,
		ExcludeSuspended:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}

	newest := &instances[0]
	for i := range instances[1:] {
		candidate := &instances[i+1]
		if candidate.CreatedAt.After(newest.CreatedAt) {
			newest = candidate
		}
	}

	if len(instances) > 1 {
		d.logger.Warn("multiple app instances linked to workspace, using newest",
			zap.String("workspace_id", workspaceID),
			zap.Int("count", len(instances)),
			zap.String("selected", newest.ID),
		)
	}

	return newest, nil
}

// MatchInstallation verifies the tenant-matching predicate used when
// initiating an installation handshake. All conditions are conjunctive:
// the offering reference, account and creation timestamp presented by the
// provisioning caller must match the fetched record exactly, and the
// instance must not already be enabled by the customer.
func (d *Directory) MatchInstallation(instance *ticketing.AppInstance, account string, createdAt time.Time) error {
	if instance.OfferingReference != d.offering {
		return fmt.Errorf("offering reference mismatch")
	}
	if instance.Account != account {
		return fmt.Errorf("account mismatch")
	}
	if !instance.CreatedAt.Truncate(time.Millisecond).Equal(createdAt.Truncate(time.Millisecond)) {
		return fmt.Errorf("creation timestamp mismatch")
	}
	if instance.EnabledByCustomer {
		return ErrAlreadyEnabled
	}
	return nil
}
