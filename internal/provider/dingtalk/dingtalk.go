// SPDX-License-Identifier: Apache-2.0

// Package dingtalk implements the ProviderClient contract against the
// DingTalk (钉钉) open API: gettoken, department listing, and cursor-paginated
// per-department user listing, deduplicated by the bare (unprefixed) userid.
//
// The original source prefixed DingTalk's normalized user id with
// "dingtalk_", inconsistent with the other two providers, and duplicated the
// field-reading block inside its per-user loop. Neither survives here: the
// ext_id is the bare upstream userid, matching wecom and feishu.
package dingtalk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/model"
	"github.com/sapcc/ldapsync/internal/provider"
)

const baseURL = "https://oapi.dingtalk.com"

// rootParentID is DingTalk's sentinel value for the top-level department.
const rootParentID = "1"

const pageSize = 100

// Config holds the credentials DingTalk issues per app.
type Config struct {
	AppKey    string
	AppSecret string
}

// Client implements provider.Client against the DingTalk API.
type Client struct {
	http  *resty.Client
	cfg   Config
	cache *provider.TokenCache
}

var _ provider.Client = (*Client)(nil)

// New builds a DingTalk client. http, if nil, defaults to provider.NewHTTPClient.
func New(cfg Config, http *resty.Client) *Client {
	if http == nil {
		http = provider.NewHTTPClient(baseURL)
	}
	c := &Client{http: http, cfg: cfg}
	c.cache = provider.NewTokenCache(c.fetchToken)
	return c
}

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("appkey", c.cfg.AppKey).
		SetQueryParam("appsecret", c.cfg.AppSecret).
		SetResult(&out).
		Get("/gettoken")
	if err != nil {
		return "", 0, fmt.Errorf("dingtalk gettoken: %w", err)
	}
	if resp.IsError() || out.ErrCode != 0 {
		return "", 0, fmt.Errorf("dingtalk gettoken failed: errcode=%d errmsg=%s", out.ErrCode, out.ErrMsg)
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

type departmentListResponse struct {
	ErrCode int          `json:"errcode"`
	ErrMsg  string       `json:"errmsg"`
	Result  []department `json:"result"`
}

type department struct {
	DeptID   int    `json:"dept_id"`
	ParentID int    `json:"parent_id"`
	Name     string `json:"name"`
}

// GetDepartments implements provider.Client.
func (c *Client) GetDepartments(ctx context.Context) ([]model.UpstreamDepartment, bool, error) {
	token, err := c.cache.Get(ctx)
	if err != nil {
		logg.Error("dingtalk: cannot obtain access token: %s", err.Error())
		return nil, false, err
	}

	var out departmentListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetResult(&out).
		Get("/topapi/v2/department/listsub")
	if err != nil {
		logg.Error("dingtalk: department list failed: %s", err.Error())
		return nil, false, err
	}
	if resp.IsError() || out.ErrCode != 0 {
		err := fmt.Errorf("dingtalk department list failed: errcode=%d errmsg=%s", out.ErrCode, out.ErrMsg)
		logg.Error("%s", err.Error())
		return nil, false, err
	}

	depts := make([]model.UpstreamDepartment, len(out.Result))
	for i, d := range out.Result {
		parent := fmt.Sprintf("%d", d.ParentID)
		if parent == rootParentID {
			parent = ""
		}
		depts[i] = model.UpstreamDepartment{
			ExtID:       fmt.Sprintf("%d", d.DeptID),
			Name:        d.Name,
			ParentExtID: parent,
		}
	}
	return depts, true, nil
}

type userPageResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Result  struct {
		HasMore    bool   `json:"has_more"`
		NextCursor int    `json:"next_cursor"`
		List       []user `json:"list"`
	} `json:"result"`
}

type user struct {
	UserID string `json:"userid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// GetUsers implements provider.Client. Each department's user list is
// fetched with cursor pagination (cursor, size=100, has_more); users are
// deduplicated by userid across departments.
func (c *Client) GetUsers(ctx context.Context) ([]model.UpstreamUser, bool, error) {
	depts, ok, err := c.GetDepartments(ctx)
	if !ok {
		return nil, false, err
	}

	token, err := c.cache.Get(ctx)
	if err != nil {
		logg.Error("dingtalk: cannot obtain access token: %s", err.Error())
		return nil, false, err
	}

	seen := make(map[string]struct{})
	deptsByUser := make(map[string][]string)
	var order []string
	userByID := make(map[string]user)

	for _, d := range depts {
		cursor := 0
		for {
			var out userPageResponse
			resp, err := c.http.R().
				SetContext(ctx).
				SetQueryParam("access_token", token).
				SetBody(map[string]any{
					"dept_id": deptIDAsInt(d.ExtID),
					"cursor":  cursor,
					"size":    pageSize,
				}).
				SetResult(&out).
				Post("/topapi/v2/user/list")
			if err != nil {
				logg.Error("dingtalk: user list for department %s failed: %s", d.ExtID, err.Error())
				return nil, false, err
			}
			if resp.IsError() || out.ErrCode != 0 {
				err := fmt.Errorf("dingtalk user list for department %s failed: errcode=%d errmsg=%s", d.ExtID, out.ErrCode, out.ErrMsg)
				logg.Error("%s", err.Error())
				return nil, false, err
			}

			for _, u := range out.Result.List {
				if _, dup := seen[u.UserID]; !dup {
					seen[u.UserID] = struct{}{}
					order = append(order, u.UserID)
					userByID[u.UserID] = u
				}
				deptsByUser[u.UserID] = append(deptsByUser[u.UserID], d.ExtID)
			}

			if !out.Result.HasMore {
				break
			}
			cursor = out.Result.NextCursor
		}
	}

	users := make([]model.UpstreamUser, 0, len(order))
	for _, userID := range order {
		u := userByID[userID]
		users = append(users, model.UpstreamUser{
			ExtID:            u.UserID,
			Name:             u.Name,
			Email:            u.Email,
			Mobile:           u.Mobile,
			DepartmentExtIDs: deptsByUser[u.UserID],
		})
	}
	return users, true, nil
}

// deptIDAsInt converts a department ext_id back to the numeric form
// DingTalk's user/list endpoint expects. ext_ids from GetDepartments are
// always produced from fmt.Sprintf("%d", ...), so this never fails.
func deptIDAsInt(extID string) int {
	n, _ := strconv.Atoi(extID)
	return n
}
