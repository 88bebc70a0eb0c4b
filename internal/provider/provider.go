// SPDX-License-Identifier: Apache-2.0

// Package provider defines the uniform contract the Reconciler uses to pull
// department and user trees from an upstream identity provider, and the
// shared token-cache helper the wecom/feishu/dingtalk implementations build
// on.
package provider

import (
	"context"

	"github.com/sapcc/ldapsync/internal/model"
)

// Client is the ProviderClient contract from spec section 4.B. Both methods
// return ok=false (rather than an empty slice with err=nil) when the pull
// failed, so the Reconciler never mistakes a failed fetch for a legitimately
// empty upstream tree.
type Client interface {
	GetDepartments(ctx context.Context) (depts []model.UpstreamDepartment, ok bool, err error)
	GetUsers(ctx context.Context) (users []model.UpstreamUser, ok bool, err error)
}
