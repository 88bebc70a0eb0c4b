// SPDX-License-Identifier: Apache-2.0

// Package feishu implements the ProviderClient contract against the Feishu
// (飞书) open API: tenant_access_token, paginated department listing
// (page_token), and user listing by department_ids.
package feishu

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/model"
	"github.com/sapcc/ldapsync/internal/provider"
)

const baseURL = "https://open.feishu.cn/open-apis"

// rootParentID is Feishu's sentinel value for "no parent" (spec section 4.B).
const rootParentID = "0"

// Config holds the credentials Feishu issues per app.
type Config struct {
	AppID     string
	AppSecret string
}

// Client implements provider.Client against the Feishu API.
type Client struct {
	http  *resty.Client
	cfg   Config
	cache *provider.TokenCache
}

var _ provider.Client = (*Client)(nil)

// New builds a Feishu client. http, if nil, defaults to provider.NewHTTPClient.
func New(cfg Config, http *resty.Client) *Client {
	if http == nil {
		http = provider.NewHTTPClient(baseURL)
	}
	c := &Client{http: http, cfg: cfg}
	c.cache = provider.NewTokenCache(c.fetchToken)
	return c
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"app_id": c.cfg.AppID, "app_secret": c.cfg.AppSecret}).
		SetResult(&out).
		Post("/auth/v3/tenant_access_token/internal")
	if err != nil {
		return "", 0, fmt.Errorf("feishu tenant_access_token: %w", err)
	}
	if resp.IsError() || out.Code != 0 {
		return "", 0, fmt.Errorf("feishu tenant_access_token failed: code=%d msg=%s", out.Code, out.Msg)
	}
	return out.TenantAccessToken, time.Duration(out.Expire) * time.Second, nil
}

type departmentListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items     []department `json:"items"`
		PageToken string       `json:"page_token"`
		HasMore   bool         `json:"has_more"`
	} `json:"data"`
}

type department struct {
	DepartmentID       string `json:"department_id"`
	ParentDepartmentID string `json:"parent_department_id"`
	Name               string `json:"name"`
}

// GetDepartments implements provider.Client, paginating via page_token until
// has_more is false.
func (c *Client) GetDepartments(ctx context.Context) ([]model.UpstreamDepartment, bool, error) {
	token, err := c.cache.Get(ctx)
	if err != nil {
		logg.Error("feishu: cannot obtain tenant access token: %s", err.Error())
		return nil, false, err
	}

	var depts []model.UpstreamDepartment
	pageToken := ""
	for {
		var out departmentListResponse
		req := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParam("page_size", "50").
			SetResult(&out)
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}
		resp, err := req.Get("/contact/v3/departments")
		if err != nil {
			logg.Error("feishu: departments page failed: %s", err.Error())
			return nil, false, err
		}
		if resp.IsError() || out.Code != 0 {
			err := fmt.Errorf("feishu departments page failed: code=%d msg=%s", out.Code, out.Msg)
			logg.Error("%s", err.Error())
			return nil, false, err
		}

		for _, d := range out.Data.Items {
			parent := d.ParentDepartmentID
			if parent == rootParentID {
				parent = ""
			}
			depts = append(depts, model.UpstreamDepartment{
				ExtID:       d.DepartmentID,
				Name:        d.Name,
				ParentExtID: parent,
			})
		}

		if !out.Data.HasMore || out.Data.PageToken == "" {
			break
		}
		pageToken = out.Data.PageToken
	}
	return depts, true, nil
}

type userListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items     []user `json:"items"`
		PageToken string `json:"page_token"`
		HasMore   bool   `json:"has_more"`
	} `json:"data"`
}

type user struct {
	OpenID        string   `json:"open_id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Mobile        string   `json:"mobile"`
	DepartmentIDs []string `json:"department_ids"`
}

// GetUsers implements provider.Client, listing users per department and
// deduplicating by open_id across departments.
func (c *Client) GetUsers(ctx context.Context) ([]model.UpstreamUser, bool, error) {
	depts, ok, err := c.GetDepartments(ctx)
	if !ok {
		return nil, false, err
	}

	token, err := c.cache.Get(ctx)
	if err != nil {
		logg.Error("feishu: cannot obtain tenant access token: %s", err.Error())
		return nil, false, err
	}

	seen := make(map[string]struct{})
	var users []model.UpstreamUser
	for _, d := range depts {
		pageToken := ""
		for {
			var out userListResponse
			req := c.http.R().
				SetContext(ctx).
				SetAuthToken(token).
				SetQueryParam("department_id", d.ExtID).
				SetQueryParam("page_size", "50").
				SetResult(&out)
			if pageToken != "" {
				req.SetQueryParam("page_token", pageToken)
			}
			resp, err := req.Get("/contact/v3/users/find_by_department")
			if err != nil {
				logg.Error("feishu: users page for department %s failed: %s", d.ExtID, err.Error())
				return nil, false, err
			}
			if resp.IsError() || out.Code != 0 {
				err := fmt.Errorf("feishu users page for department %s failed: code=%d msg=%s", d.ExtID, out.Code, out.Msg)
				logg.Error("%s", err.Error())
				return nil, false, err
			}

			for _, u := range out.Data.Items {
				if _, dup := seen[u.OpenID]; dup {
					continue
				}
				seen[u.OpenID] = struct{}{}
				users = append(users, model.UpstreamUser{
					ExtID:            u.OpenID,
					Name:             u.Name,
					Email:            u.Email,
					Mobile:           u.Mobile,
					DepartmentExtIDs: u.DepartmentIDs,
				})
			}

			if !out.Data.HasMore || out.Data.PageToken == "" {
				break
			}
			pageToken = out.Data.PageToken
		}
	}
	return users, true, nil
}
