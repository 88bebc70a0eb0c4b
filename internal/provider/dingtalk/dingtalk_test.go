// SPDX-License-Identifier: Apache-2.0

package dingtalk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sapcc/ldapsync/internal/provider"
)

func TestGetDepartmentsAndUsersCursorPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gettoken":
			_, _ = w.Write([]byte(`{"errcode":0,"access_token":"tok","expires_in":7200}`))
		case "/topapi/v2/department/listsub":
			_, _ = w.Write([]byte(`{"errcode":0,"result":[{"dept_id":1,"parent_id":1,"name":"Root"},{"dept_id":2,"parent_id":1,"name":"Eng"}]}`))
		case "/topapi/v2/user/list":
			_, _ = w.Write([]byte(`{"errcode":0,"result":{"has_more":false,"next_cursor":0,"list":[{"userid":"d1","name":"Carol","email":"c@x.com","mobile":"333"}]}}`))
		}
	}))
	defer srv.Close()

	c := New(Config{AppKey: "key", AppSecret: "secret"}, provider.NewHTTPClient(srv.URL))

	depts, ok, err := c.GetDepartments(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, depts, 2)
	require.Equal(t, "", depts[0].ParentExtID)
	require.Equal(t, "", depts[1].ParentExtID)

	users, ok, err := c.GetUsers(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, users, 1)
	require.Equal(t, "d1", users[0].ExtID)
	require.NotContains(t, users[0].ExtID, "dingtalk_")
}
