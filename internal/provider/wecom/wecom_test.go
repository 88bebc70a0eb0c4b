// SPDX-License-Identifier: Apache-2.0

package wecom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sapcc/ldapsync/internal/provider"
)

func TestGetDepartmentsAndUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gettoken":
			_, _ = w.Write([]byte(`{"errcode":0,"access_token":"tok","expires_in":7200}`))
		case "/department/list":
			_, _ = w.Write([]byte(`{"errcode":0,"department":[
				{"id":1,"parentid":0,"name":"Root"},
				{"id":2,"parentid":1,"name":"Engineering"}
			]}`))
		case "/user/list":
			deptID := r.URL.Query().Get("department_id")
			if deptID == "1" {
				_, _ = w.Write([]byte(`{"errcode":0,"userlist":[{"userid":"u1","name":"Alice","email":"a@x.com","mobile":"111","department":[1,2]}]}`))
			} else {
				_, _ = w.Write([]byte(`{"errcode":0,"userlist":[{"userid":"u1","name":"Alice","email":"a@x.com","mobile":"111","department":[1,2]}]}`))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(Config{CorpID: "corp", AppSecret: "secret"}, provider.NewHTTPClient(srv.URL))

	depts, ok, err := c.GetDepartments(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, depts, 2)
	require.Equal(t, "", depts[0].ParentExtID)
	require.Equal(t, "1", depts[1].ParentExtID)

	users, ok, err := c.GetUsers(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, users, 1)
	require.Equal(t, "u1", users[0].ExtID)
	require.Equal(t, "Alice", users[0].Name)
}

func TestGetDepartmentsFailurePropagatesNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gettoken":
			_, _ = w.Write([]byte(`{"errcode":0,"access_token":"tok","expires_in":7200}`))
		case "/department/list":
			_, _ = w.Write([]byte(`{"errcode":40014,"errmsg":"invalid access_token"}`))
		}
	}))
	defer srv.Close()

	c := New(Config{CorpID: "corp", AppSecret: "secret"}, provider.NewHTTPClient(srv.URL))
	_, ok, err := c.GetDepartments(context.Background())
	require.Error(t, err)
	require.False(t, ok)
}
