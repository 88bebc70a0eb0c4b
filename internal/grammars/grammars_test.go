/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package grammars

import (
	"regexp"
	"testing"
)

func TestGrammars(t *testing.T) {
	var testCases = []string{
		// valid LDAP suffixes
		"dc=example,dc=com",
		"dc=net",
		"dc=1,dc=example,dc=org",
		// invalid LDAP suffixes
		"",
		",dc=example,dc=com",         //empty segment
		"dc=example,dc=com,",         //empty segment
		"ou=users,dc=example,dc=com", //only dc= allowed
		"=example,dc=com",            //empty key
		"dc=example,dc=",             //empty value
		"dc=example!,dc=com",         //invalid chars in value
		"dc=ldap,dc=example.com",     //invalid chars in value
		"example,dc=com",             //missing key
	}

	// The test checks that IsLDAPSuffix returns the same results as the
	// defining regex.
	ldapSuffixRx := regexp.MustCompile(LDAPSuffixRegex)

	for _, input := range testCases {
		actual := IsLDAPSuffix(input)
		expected := ldapSuffixRx.MatchString(input)
		if actual != expected {
			t.Errorf("expected IsLDAPSuffix(%q) = %t, but got %t", input, expected, actual)
		}
	}
}
