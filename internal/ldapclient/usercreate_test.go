// SPDX-License-Identifier: Apache-2.0

package ldapclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubClient is a minimal Client double for exercising CreateUser's cascade
// and MoveObject's fallback chain without a real LDAP server.
type stubClient struct {
	entries map[string]Entry
	// rejectAdd, when set, is consulted by Add for each new dn; a non-nil
	// return value makes that Add fail with it.
	rejectAdd func(dn string, classes []string) error
	denyModifyDN bool
}

func newStubClient() *stubClient {
	return &stubClient{entries: map[string]Entry{}}
}

func (s *stubClient) Exists(ctx context.Context, dn string) (bool, error) {
	_, ok := s.entries[dn]
	return ok, nil
}

func (s *stubClient) Add(ctx context.Context, dn string, classes []string, attrs map[string][]string) error {
	if _, ok := s.entries[dn]; ok {
		return errAlreadyExistsStub{}
	}
	if s.rejectAdd != nil {
		if err := s.rejectAdd(dn, classes); err != nil {
			return err
		}
	}
	merged := map[string][]string{}
	for k, v := range attrs {
		merged[k] = v
	}
	merged["objectClass"] = classes
	s.entries[dn] = Entry{DN: dn, Attributes: merged}
	return nil
}

func (s *stubClient) Modify(ctx context.Context, dn string, attrs map[string][]string) error {
	e, ok := s.entries[dn]
	if !ok {
		return errNoSuchObjectStub{}
	}
	for k, v := range attrs {
		if k == "objectClass" {
			continue
		}
		e.Attributes[k] = v
	}
	s.entries[dn] = e
	return nil
}

func (s *stubClient) ModifyDN(ctx context.Context, oldDN, newRDN, newSuperior string) error {
	if s.denyModifyDN {
		return errUnwillingStub{}
	}
	e, ok := s.entries[oldDN]
	if !ok {
		return errNoSuchObjectStub{}
	}
	newDN := newRDN
	if newSuperior != "" {
		newDN = newRDN + "," + newSuperior
	} else {
		_, parent := splitDN(oldDN)
		newDN = newRDN + "," + parent
	}
	delete(s.entries, oldDN)
	e.DN = newDN
	s.entries[newDN] = e
	return nil
}

func (s *stubClient) Delete(ctx context.Context, dn string) error {
	if _, ok := s.entries[dn]; !ok {
		return errNoSuchObjectStub{}
	}
	delete(s.entries, dn)
	return nil
}

func (s *stubClient) SearchByFilter(ctx context.Context, base, filter string, scope Scope, attrs []string) ([]Entry, error) {
	switch scope {
	case ScopeBaseObject:
		if e, ok := s.entries[base]; ok {
			return []Entry{e}, nil
		}
		return nil, nil
	case ScopeSingleLevel:
		var out []Entry
		for dn, e := range s.entries {
			_, parent := splitDN(dn)
			if parent == base {
				out = append(out, e)
			}
		}
		return out, nil
	default:
		var out []Entry
		for _, e := range s.entries {
			out = append(out, e)
		}
		return out, nil
	}
}

func (s *stubClient) SearchUserByUID(ctx context.Context, uid, base string) (string, bool, error) {
	return "", false, nil
}

func (s *stubClient) FindDepartmentByDescription(ctx context.Context, desc, base string) (string, bool, error) {
	return "", false, nil
}

func (s *stubClient) Close() error { return nil }

type errAlreadyExistsStub struct{}

func (errAlreadyExistsStub) Error() string { return "already exists" }

type errNoSuchObjectStub struct{}

func (errNoSuchObjectStub) Error() string { return "no such object" }

type errUnwillingStub struct{}

func (errUnwillingStub) Error() string { return "unwilling to perform" }

func TestCreateUserFirstComboSucceeds(t *testing.T) {
	c := newStubClient()
	dn := "uid=jdoe,ou=people,dc=example,dc=org"
	err := CreateUser(c, context.Background(), dn, map[string][]string{
		"cn": {"Jane Doe"}, "sn": {"Doe"}, "uid": {"jdoe"},
	})
	require.NoError(t, err)
	require.Contains(t, c.entries, dn)
	require.Equal(t, objectClassCascade[0], c.entries[dn].Attributes["objectClass"])
}

func TestCreateUserFallsBackToAccountOnly(t *testing.T) {
	c := newStubClient()
	c.rejectAdd = func(dn string, classes []string) error {
		if isAccountOnly(classes) {
			return nil
		}
		return errUnwillingStub{}
	}
	dn := "uid=jdoe,ou=people,dc=example,dc=org"
	err := CreateUser(c, context.Background(), dn, map[string][]string{
		"cn": {"Jane Doe"}, "sn": {"Doe"}, "uid": {"jdoe"},
	})
	require.NoError(t, err)
	entry := c.entries[dn]
	require.NotContains(t, entry.Attributes, "cn")
	require.NotContains(t, entry.Attributes, "sn")
	require.Equal(t, []string{"jdoe"}, entry.Attributes["uid"])
}

func TestCreateUserExhaustsCascade(t *testing.T) {
	c := newStubClient()
	c.rejectAdd = func(dn string, classes []string) error { return errUnwillingStub{} }
	dn := "uid=jdoe,ou=people,dc=example,dc=org"
	err := CreateUser(c, context.Background(), dn, map[string][]string{"uid": {"jdoe"}})
	require.Error(t, err)
	require.NotContains(t, c.entries, dn)
}

func TestMoveObjectPureRename(t *testing.T) {
	c := newStubClient()
	oldDN := "cn=Sales,ou=departments,dc=example,dc=org"
	c.entries[oldDN] = Entry{DN: oldDN, Attributes: map[string][]string{
		"objectClass": {"top", "organizationalUnit"}, "ou": {"Sales"},
	}}
	newDN := "cn=Sales Team,ou=departments,dc=example,dc=org"
	err := MoveObject(context.Background(), c, oldDN, newDN)
	require.NoError(t, err)
	require.NotContains(t, c.entries, oldDN)
	require.Contains(t, c.entries, newDN)
}

func TestMoveObjectCopyThenDeleteFallback(t *testing.T) {
	c := newStubClient()
	c.denyModifyDN = true
	oldDN := "ou=Sales,ou=departments,dc=example,dc=org"
	childDN := "ou=Team A,ou=Sales,ou=departments,dc=example,dc=org"
	c.entries[oldDN] = Entry{DN: oldDN, Attributes: map[string][]string{
		"objectClass": {"top", "organizationalUnit"}, "ou": {"Sales"}, "description": {"dept:1"},
	}}
	c.entries[childDN] = Entry{DN: childDN, Attributes: map[string][]string{
		"objectClass": {"top", "organizationalUnit"}, "ou": {"Team A"},
	}}
	newDN := "ou=Sales,ou=other,dc=example,dc=org"
	err := MoveObject(context.Background(), c, oldDN, newDN)
	require.NoError(t, err)
	require.NotContains(t, c.entries, oldDN)
	require.Contains(t, c.entries, newDN)
	require.Contains(t, c.entries, "ou=Team A,"+newDN)
}

func TestMoveObjectRefusesWhenDestinationExists(t *testing.T) {
	c := newStubClient()
	c.denyModifyDN = true
	oldDN := "ou=Sales,ou=departments,dc=example,dc=org"
	newDN := "ou=Sales,ou=other,dc=example,dc=org"
	c.entries[oldDN] = Entry{DN: oldDN, Attributes: map[string][]string{"objectClass": {"top", "organizationalUnit"}}}
	c.entries[newDN] = Entry{DN: newDN, Attributes: map[string][]string{"objectClass": {"top", "organizationalUnit"}}}
	err := MoveObject(context.Background(), c, oldDN, newDN)
	require.Error(t, err)
	require.Contains(t, c.entries, oldDN)
}
