// SPDX-License-Identifier: Apache-2.0

// Package wecom implements the ProviderClient contract against the WeCom
// (企业微信) open API: gettoken, department/list, and user/list per
// department, deduplicated by userid.
package wecom

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/model"
	"github.com/sapcc/ldapsync/internal/provider"
)

const baseURL = "https://qyapi.weixin.qq.com/cgi-bin"

// rootParentID is WeCom's sentinel value for "no parent" (spec section 4.B).
const rootParentID = "0"

// Config holds the credentials WeCom issues per corp/app.
type Config struct {
	CorpID    string
	AppSecret string
}

// Client implements provider.Client against the WeCom API.
type Client struct {
	http  *resty.Client
	cfg   Config
	cache *provider.TokenCache
}

var _ provider.Client = (*Client)(nil)

// New builds a WeCom client. http, if nil, defaults to provider.NewHTTPClient.
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
		SetQueryParam("corpid", c.cfg.CorpID).
		SetQueryParam("corpsecret", c.cfg.AppSecret).
		SetResult(&out).
		Get("/gettoken")
	if err != nil {
		return "", 0, fmt.Errorf("wecom gettoken: %w", err)
	}
	if resp.IsError() || out.ErrCode != 0 {
		return "", 0, fmt.Errorf("wecom gettoken failed: errcode=%d errmsg=%s", out.ErrCode, out.ErrMsg)
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

type departmentListResponse struct {
	ErrCode    int          `json:"errcode"`
	ErrMsg     string       `json:"errmsg"`
	Department []department `json:"department"`
}

type department struct {
	ID       int    `json:"id"`
	ParentID int    `json:"parentid"`
	Name     string `json:"name"`
}

// GetDepartments implements provider.Client.
func (c *Client) GetDepartments(ctx context.Context) ([]model.UpstreamDepartment, bool, error) {
	token, err := c.cache.Get(ctx)
	if err != nil {
		logg.Error("wecom: cannot obtain access token: %s", err.Error())
		return nil, false, err
	}

	var out departmentListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetResult(&out).
		Get("/department/list")
	if err != nil {
		logg.Error("wecom: department/list failed: %s", err.Error())
		return nil, false, err
	}
	if resp.IsError() || out.ErrCode != 0 {
		err := fmt.Errorf("wecom department/list failed: errcode=%d errmsg=%s", out.ErrCode, out.ErrMsg)
		logg.Error("%s", err.Error())
		return nil, false, err
	}

	depts := make([]model.UpstreamDepartment, len(out.Department))
	for i, d := range out.Department {
		parent := fmt.Sprintf("%d", d.ParentID)
		if parent == rootParentID {
			parent = ""
		}
		depts[i] = model.UpstreamDepartment{
			ExtID:       fmt.Sprintf("%d", d.ID),
			Name:        d.Name,
			ParentExtID: parent,
		}
	}
	return depts, true, nil
}

type userListResponse struct {
	ErrCode  int    `json:"errcode"`
	ErrMsg   string `json:"errmsg"`
	UserList []user `json:"userlist"`
}

type user struct {
	UserID     string `json:"userid"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	Department []int  `json:"department"`
}

// GetUsers implements provider.Client. It walks every department returned by
// GetDepartments and deduplicates users by userid across departments.
func (c *Client) GetUsers(ctx context.Context) ([]model.UpstreamUser, bool, error) {
	depts, ok, err := c.GetDepartments(ctx)
	if !ok {
		return nil, false, err
	}

	token, err := c.cache.Get(ctx)
	if err != nil {
		logg.Error("wecom: cannot obtain access token: %s", err.Error())
		return nil, false, err
	}

	seen := make(map[string]struct{})
	var users []model.UpstreamUser
	for _, d := range depts {
		var out userListResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("access_token", token).
			SetQueryParam("department_id", d.ExtID).
			SetQueryParam("fetch_child", "0").
			SetResult(&out).
			Get("/user/list")
		if err != nil {
			logg.Error("wecom: user/list for department %s failed: %s", d.ExtID, err.Error())
			return nil, false, err
		}
		if resp.IsError() || out.ErrCode != 0 {
			err := fmt.Errorf("wecom user/list for department %s failed: errcode=%d errmsg=%s", d.ExtID, out.ErrCode, out.ErrMsg)
			logg.Error("%s", err.Error())
			return nil, false, err
		}

		for _, u := range out.UserList {
			if _, dup := seen[u.UserID]; dup {
				continue
			}
			seen[u.UserID] = struct{}{}
			deptIDs := make([]string, len(u.Department))
			for i, id := range u.Department {
				deptIDs[i] = fmt.Sprintf("%d", id)
			}
			users = append(users, model.UpstreamUser{
				ExtID:            u.UserID,
				Name:             u.Name,
				Email:            u.Email,
				Mobile:           u.Mobile,
				DepartmentExtIDs: deptIDs,
			})
		}
	}
	return users, true, nil
}
