// SPDX-License-Identifier: Apache-2.0

// Package index holds the per-run Identity Index: in-process maps from
// upstream ext_id to LDAP DN for departments and users. The index is
// authoritative only for the run that built it; nothing here survives
// across runs.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/sapcc/ldapsync/internal/ldapclient"
	"github.com/sapcc/ldapsync/internal/model"
)

// DepartmentEntry is what the index remembers about one synced department.
type DepartmentEntry struct {
	ExtID       string
	LDAPDN      string
	Name        string
	ParentExtID string
}

// DepartmentIndex maps an upstream department ext_id to its LDAP state.
type DepartmentIndex struct {
	byExtID map[string]DepartmentEntry
}

// NewDepartmentIndex builds an empty index.
func NewDepartmentIndex() *DepartmentIndex {
	return &DepartmentIndex{byExtID: map[string]DepartmentEntry{}}
}

// Get looks up a department by ext_id.
func (idx *DepartmentIndex) Get(extID string) (DepartmentEntry, bool) {
	e, ok := idx.byExtID[extID]
	return e, ok
}

// Put records or overwrites a department's LDAP state.
func (idx *DepartmentIndex) Put(e DepartmentEntry) {
	idx.byExtID[e.ExtID] = e
}

// Len returns the number of indexed departments.
func (idx *DepartmentIndex) Len() int { return len(idx.byExtID) }

// UserEntry is what the index remembers about one synced user.
type UserEntry struct {
	ExtID  string
	LDAPDN string
	// Attrs holds the last-seen values of the attributes the Reconciler
	// diffs against: cn, mail, telephoneNumber.
	Attrs map[string]string
}

// UserIndex maps an upstream user ext_id to its LDAP state.
type UserIndex struct {
	byExtID map[string]UserEntry
}

// NewUserIndex builds an empty index.
func NewUserIndex() *UserIndex {
	return &UserIndex{byExtID: map[string]UserEntry{}}
}

// Get looks up a user by ext_id.
func (idx *UserIndex) Get(extID string) (UserEntry, bool) {
	e, ok := idx.byExtID[extID]
	return e, ok
}

// Put records or overwrites a user's LDAP state.
func (idx *UserIndex) Put(e UserEntry) {
	idx.byExtID[e.ExtID] = e
}

// Len returns the number of indexed users.
func (idx *UserIndex) Len() int { return len(idx.byExtID) }

// DepartmentIdentityTag builds the description attribute value that carries
// a department's identity across runs, per spec section 3.
func DepartmentIdentityTag(provider model.ProviderKind, extID string) string {
	return fmt.Sprintf("%s部门ID: %s", providerLabel(provider), extID)
}

// UserIdentityTag builds the description attribute value for a user entry.
func UserIdentityTag(provider model.ProviderKind, extID string) string {
	return fmt.Sprintf("%s用户，用户ID：%s", providerLabel(provider), extID)
}

func providerLabel(p model.ProviderKind) string {
	switch p {
	case model.ProviderWeCom:
		return "WeCom"
	case model.ProviderFeishu:
		return "Feishu"
	case model.ProviderDingTalk:
		return "DingTalk"
	default:
		return string(p)
	}
}

// extIDFromTag extracts the ext_id suffix from an identity tag produced by
// DepartmentIdentityTag/UserIdentityTag, regardless of which of the two
// separators (": " or "：") the tag uses.
func extIDFromTag(tag string) (string, bool) {
	for _, sep := range []string{": ", "：", ":"} {
		if i := strings.LastIndex(tag, sep); i >= 0 {
			return strings.TrimSpace(tag[i+len(sep):]), true
		}
	}
	return "", false
}

// BuildDepartmentIndex seeds a DepartmentIndex by scanning LDAP under base_dn
// for organizationalUnit entries whose description carries the provider's
// identity tag, per spec section 4.C. ParentExtID is left empty here; the
// Reconciler fills it in as it walks the upstream tree.
func BuildDepartmentIndex(ctx context.Context, c ldapclient.Client, baseDN string, provider model.ProviderKind) (*DepartmentIndex, error) {
	idx := NewDepartmentIndex()
	entries, err := c.SearchByFilter(ctx, baseDN, "(objectClass=organizationalUnit)", ldapclient.ScopeWholeSubtree, []string{"ou", "description"})
	if err != nil {
		return nil, &model.TransportError{Op: "scan department index", Err: err}
	}
	for _, e := range entries {
		desc := e.GetAttributeValue("description")
		if !strings.HasPrefix(desc, providerLabel(provider)) {
			continue
		}
		extID, ok := extIDFromTag(desc)
		if !ok {
			continue
		}
		idx.Put(DepartmentEntry{ExtID: extID, LDAPDN: e.DN, Name: e.GetAttributeValue("ou")})
	}
	return idx, nil
}

// BuildUserIndex seeds a UserIndex by scanning LDAP under base_dn for
// entries whose description carries the provider's user identity tag.
// ext_id is resolved, per spec section 4.D.2, by trying userid, then
// employeeNumber, then uid (stripping an optional "<provider>_" prefix).
func BuildUserIndex(ctx context.Context, c ldapclient.Client, baseDN string, provider model.ProviderKind) (*UserIndex, error) {
	idx := NewUserIndex()
	entries, err := c.SearchByFilter(ctx, baseDN, "(description=*)", ldapclient.ScopeWholeSubtree,
		[]string{"userid", "employeeNumber", "uid", "cn", "mail", "telephoneNumber", "description"})
	if err != nil {
		return nil, &model.TransportError{Op: "scan user index", Err: err}
	}
	prefix := strings.ToLower(string(provider)) + "_"
	for _, e := range entries {
		desc := e.GetAttributeValue("description")
		if !strings.HasPrefix(desc, providerLabel(provider)) {
			continue
		}
		extID := e.GetAttributeValue("userid")
		if extID == "" {
			extID = e.GetAttributeValue("employeeNumber")
		}
		if extID == "" {
			uid := e.GetAttributeValue("uid")
			if strings.HasPrefix(strings.ToLower(uid), prefix) {
				extID = uid[len(prefix):]
			} else {
				extID = uid
			}
		}
		if extID == "" {
			continue
		}
		idx.Put(UserEntry{
			ExtID:  extID,
			LDAPDN: e.DN,
			Attrs: map[string]string{
				"cn":              e.GetAttributeValue("cn"),
				"mail":            e.GetAttributeValue("mail"),
				"telephoneNumber": e.GetAttributeValue("telephoneNumber"),
			},
		})
	}
	return idx, nil
}
