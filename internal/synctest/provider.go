// SPDX-License-Identifier: Apache-2.0

package synctest

import (
	"context"

	"github.com/sapcc/ldapsync/internal/model"
)

// FakeProvider is a provider.Client double returning a fixed snapshot. Set
// DeptsFail/UsersFail to simulate the "empty but failed" case from spec
// section 4.B.
type FakeProvider struct {
	Depts     []model.UpstreamDepartment
	Users     []model.UpstreamUser
	DeptsFail bool
	UsersFail bool
}

func (p *FakeProvider) GetDepartments(ctx context.Context) ([]model.UpstreamDepartment, bool, error) {
	if p.DeptsFail {
		return nil, false, errProviderFailed
	}
	return p.Depts, true, nil
}

func (p *FakeProvider) GetUsers(ctx context.Context) ([]model.UpstreamUser, bool, error) {
	if p.UsersFail {
		return nil, false, errProviderFailed
	}
	return p.Users, true, nil
}

var errProviderFailed = sentinelErr("provider fetch failed")
