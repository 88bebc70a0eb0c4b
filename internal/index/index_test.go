// SPDX-License-Identifier: Apache-2.0

package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sapcc/ldapsync/internal/model"
)

func TestIdentityTagsRoundTrip(t *testing.T) {
	tag := DepartmentIdentityTag(model.ProviderWeCom, "42")
	extID, ok := extIDFromTag(tag)
	require.True(t, ok)
	require.Equal(t, "42", extID)

	tag = UserIdentityTag(model.ProviderFeishu, "u-7")
	extID, ok = extIDFromTag(tag)
	require.True(t, ok)
	require.Equal(t, "u-7", extID)
}

func TestDepartmentIndexPutGet(t *testing.T) {
	idx := NewDepartmentIndex()
	idx.Put(DepartmentEntry{ExtID: "1", LDAPDN: "ou=A,ou=depts,dc=example,dc=org", Name: "A"})
	e, ok := idx.Get("1")
	require.True(t, ok)
	require.Equal(t, "A", e.Name)
	_, ok = idx.Get("missing")
	require.False(t, ok)
	require.Equal(t, 1, idx.Len())
}
