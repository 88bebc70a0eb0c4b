// SPDX-License-Identifier: Apache-2.0

package ldapclient

import (
	"context"

	"github.com/sapcc/ldapsync/internal/model"
)

// objectClassCascade lists user object-class combinations from richest to
// simplest. The administrator's LDAP schema is unknown in advance, so
// CreateUser tries each in turn and keeps the first that the server accepts.
var objectClassCascade = [][]string{
	{"top", "person", "organizationalPerson", "inetOrgPerson"},
	{"top", "person", "organizationalPerson"},
	{"top", "person", "organizationalPerson", "inetOrgPerson", "posixAccount"},
	{"top", "person"},
	{"top", "simpleSecurityObject", "account"},
	{"top", "account"},
}

// accountOnlyClasses identifies the combinations that resolve to the bare
// `account` object class, which does not permit `cn`/`sn`.
func isAccountOnly(classes []string) bool {
	for _, c := range classes {
		if c == "person" || c == "organizationalPerson" || c == "inetOrgPerson" {
			return false
		}
	}
	return true
}

// CreateUser adds a user entry at dn, trying objectClassCascade from richest
// to simplest schema and keeping the first combination the server accepts.
// For the account-only combination, cn and sn are stripped from attrs before
// the attempt, since the bare account object class does not carry them.
func CreateUser(c Client, ctx context.Context, dn string, attrs map[string][]string) error {
	var lastErr error
	var attempted []string
	for _, classes := range objectClassCascade {
		payload := attrs
		if isAccountOnly(classes) {
			payload = withoutNameAttrs(attrs)
		}
		attempted = append(attempted, joinClasses(classes))
		err := c.Add(ctx, dn, classes, payload)
		if err == nil {
			return nil
		}
		if IsAlreadyExists(err) {
			return err
		}
		lastErr = err
	}
	return &model.ItemError{DN: dn, Err: &model.SchemaError{Attempted: attempted, LastErr: lastErr}}
}

func withoutNameAttrs(attrs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		if k == "cn" || k == "sn" {
			continue
		}
		out[k] = v
	}
	return out
}

func joinClasses(classes []string) string {
	out := ""
	for i, c := range classes {
		if i > 0 {
			out += "+"
		}
		out += c
	}
	return out
}
