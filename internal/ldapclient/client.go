// SPDX-License-Identifier: Apache-2.0

// Package ldapclient is a thin, typed wrapper over an LDAP transport. It
// exposes exactly the operations the reconciliation engine needs (exists,
// add, modify, modifyDN, delete, search) and nothing more, following the
// shape of the teacher's internal/ldap.Connection interface but extended
// with search and rename/reparent support.
package ldapclient

import (
	"context"
	"fmt"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/model"
)

// Entry is a generic search result: a DN plus all requested attribute values.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// GetAttributeValue returns the first value of the named attribute, or "".
func (e Entry) GetAttributeValue(name string) string {
	vals := e.Attributes[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Scope mirrors the three goldap search scopes the engine needs.
type Scope int

const (
	ScopeBaseObject Scope = Scope(goldap.ScopeBaseObject)
	ScopeSingleLevel Scope = Scope(goldap.ScopeSingleLevel)
	ScopeWholeSubtree Scope = Scope(goldap.ScopeWholeSubtree)
)

// Client is the LDAPClient contract consumed by the Reconciler. goldap
// itself has no context-based cancellation, so Connect bounds every
// operation with conn.SetTimeout(opts.CallTimeout) instead; the ctx
// parameters exist for interface symmetry with the provider HTTP clients
// and so future goldap versions with native context support can be adopted
// without changing this contract.
type Client interface {
	Exists(ctx context.Context, dn string) (bool, error)
	Add(ctx context.Context, dn string, objectClasses []string, attrs map[string][]string) error
	Modify(ctx context.Context, dn string, attrs map[string][]string) error
	ModifyDN(ctx context.Context, oldDN, newRDN, newSuperior string) error
	Delete(ctx context.Context, dn string) error
	SearchByFilter(ctx context.Context, base, filter string, scope Scope, attrs []string) ([]Entry, error)
	SearchUserByUID(ctx context.Context, uid, base string) (dn string, found bool, err error)
	FindDepartmentByDescription(ctx context.Context, descSubstring, base string) (dn string, found bool, err error)
	Close() error
}

// Options carries everything needed to open a bound session.
type Options struct {
	ServerURI    string
	BindDN       string
	BindPassword string
	// CallTimeout bounds each individual LDAP operation. Defaults to 30s.
	CallTimeout time.Duration
}

type client struct {
	opts Options
	conn *goldap.Conn
}

// Connect establishes a bound session to the LDAP server, retrying with
// exponential backoff up to 10 times (about 5-6 seconds total), following
// the teacher's Connection.getConn pattern -- the downstream directory may
// still be starting up when the engine first runs.
func Connect(opts Options) (Client, error) {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = 30 * time.Second
	}
	c := &client{opts: opts}
	err := c.dial(0, 5*time.Millisecond)
	if err != nil {
		return nil, &model.TransportError{Op: "connect", Err: err}
	}
	return c, nil
}

func (c *client) dial(retryCounter int, sleepInterval time.Duration) error {
	if retryCounter == 10 {
		return fmt.Errorf("giving up on LDAP server %s after 10 connection attempts", c.opts.ServerURI)
	}
	time.Sleep(sleepInterval)

	conn, err := goldap.DialURL(c.opts.ServerURI)
	if err == nil {
		err = conn.Bind(c.opts.BindDN, c.opts.BindPassword)
	}
	if err != nil {
		logg.Info("cannot connect to LDAP server %s (attempt %d/10): %s", c.opts.ServerURI, retryCounter+1, err.Error())
		return c.dial(retryCounter+1, sleepInterval*2)
	}

	conn.SetTimeout(c.opts.CallTimeout)
	c.conn = conn
	logg.Info("connected to LDAP server %s", c.opts.ServerURI)
	return nil
}

// Close implements the Client interface.
func (c *client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Exists implements the Client interface.
func (c *client) Exists(ctx context.Context, dn string) (bool, error) {
	req := goldap.NewSearchRequest(dn, goldap.ScopeBaseObject, goldap.NeverDerefAliases,
		0, 0, false, "(objectClass=*)", []string{"dn"}, nil)
	_, err := c.conn.Search(req)
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return false, nil
		}
		return false, &model.TransportError{Op: "exists " + dn, Err: err}
	}
	return true, nil
}

// Add implements the Client interface. It fails with a wrapped
// goldap.LDAPResultEntryAlreadyExists error if the DN is taken; callers
// recognize this via IsAlreadyExists.
func (c *client) Add(ctx context.Context, dn string, objectClasses []string, attrs map[string][]string) error {
	req := goldap.AddRequest{DN: dn}
	for typeName, values := range attrs {
		req.Attributes = append(req.Attributes, goldap.Attribute{Type: typeName, Vals: values})
	}
	req.Attributes = append(req.Attributes, goldap.Attribute{Type: "objectClass", Vals: objectClasses})

	err := c.conn.Add(&req)
	if err != nil {
		return fmt.Errorf("cannot add %s: %w", dn, err)
	}
	logg.Debug("LDAP object %s created", dn)
	return nil
}

// IsAlreadyExists reports whether err indicates the target DN already exists.
func IsAlreadyExists(err error) bool {
	return goldap.IsErrorWithCode(err, goldap.LDAPResultEntryAlreadyExists)
}

// IsNoSuchObject reports whether err indicates the target DN does not exist.
func IsNoSuchObject(err error) bool {
	return goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject)
}

// Modify implements the Client interface with REPLACE semantics per named
// attribute. objectClass is silently excluded: schema changes go through Add
// only, never through Modify, following spec section 4.A.
func (c *client) Modify(ctx context.Context, dn string, attrs map[string][]string) error {
	req := goldap.NewModifyRequest(dn, nil)
	for typeName, values := range attrs {
		if typeName == "objectClass" {
			continue
		}
		if len(values) == 0 {
			req.Delete(typeName, nil)
		} else {
			req.Replace(typeName, values)
		}
	}
	if len(req.Changes) == 0 {
		return nil
	}
	err := c.conn.Modify(req)
	if err != nil {
		return fmt.Errorf("cannot modify %s: %w", dn, err)
	}
	logg.Debug("LDAP object %s updated", dn)
	return nil
}

// ModifyDN implements the Client interface. Set newSuperior to "" to rename
// in place; set it to move the entry under a new parent.
func (c *client) ModifyDN(ctx context.Context, oldDN, newRDN, newSuperior string) error {
	req := goldap.NewModifyDNRequest(oldDN, newRDN, true, newSuperior)
	err := c.conn.ModifyDN(req)
	if err != nil {
		return fmt.Errorf("cannot rename/move %s to %s (superior %q): %w", oldDN, newRDN, newSuperior, err)
	}
	logg.Debug("LDAP object %s renamed to %s (superior %q)", oldDN, newRDN, newSuperior)
	return nil
}

// Delete implements the Client interface.
func (c *client) Delete(ctx context.Context, dn string) error {
	req := goldap.NewDelRequest(dn, nil)
	err := c.conn.Del(req)
	if err != nil {
		return fmt.Errorf("cannot delete %s: %w", dn, err)
	}
	logg.Debug("LDAP object %s deleted", dn)
	return nil
}

// SearchByFilter implements the Client interface.
func (c *client) SearchByFilter(ctx context.Context, base, filter string, scope Scope, attrs []string) ([]Entry, error) {
	req := goldap.NewSearchRequest(base, int(scope), goldap.NeverDerefAliases,
		0, 0, false, filter, attrs, nil)
	result, err := c.conn.Search(req)
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, &model.TransportError{Op: fmt.Sprintf("search %s %s", base, filter), Err: err}
	}

	entries := make([]Entry, len(result.Entries))
	for i, e := range result.Entries {
		attrMap := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrMap[a.Name] = a.Values
		}
		entries[i] = Entry{DN: e.DN, Attributes: attrMap}
	}
	return entries, nil
}

// SearchUserByUID implements the Client interface.
func (c *client) SearchUserByUID(ctx context.Context, uid, base string) (string, bool, error) {
	filter := fmt.Sprintf("(uid=%s)", goldap.EscapeFilter(uid))
	entries, err := c.SearchByFilter(ctx, base, filter, ScopeWholeSubtree, []string{"dn"})
	if err != nil {
		return "", false, err
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].DN, true, nil
}

// FindDepartmentByDescription implements the Client interface.
func (c *client) FindDepartmentByDescription(ctx context.Context, descSubstring, base string) (string, bool, error) {
	filter := fmt.Sprintf("(&(objectClass=organizationalUnit)(description=*%s*))", goldap.EscapeFilter(descSubstring))
	entries, err := c.SearchByFilter(ctx, base, filter, ScopeWholeSubtree, []string{"dn"})
	if err != nil {
		return "", false, err
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].DN, true, nil
}
