package services

import (
	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/types"
)

// authorizeOwner permits a mutation only by the resource author.
func authorizeOwner(actor auth.Identity, ownerID string) error {
	if actor.ID == "" || actor.ID != ownerID {
		return ErrForbidden
	}
	return nil
}

// authorizeOwnerOrAdmin permits deletions by the author or an admin.
func authorizeOwnerOrAdmin(actor auth.Identity, ownerID string) error {
	if actor.Role == types.RoleAdmin && actor.ID != "" {
		return nil
	}
	return authorizeOwner(actor, ownerID)
}

// authorizeFollow enforces the follow rules: only role "user" may follow
// or unfollow, and never itself.
func authorizeFollow(actor auth.Identity, targetID string) error {
	if actor.ID == "" || actor.Role != types.RoleUser {
		return ErrForbidden
	}
	if actor.ID == targetID {
		return ErrForbidden
	}
	return nil
}
