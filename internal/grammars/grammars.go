/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package grammars contains an explicit (non-regexp) implementation of the
// LDAP suffix grammar used to validate LDAPConfig.BaseDN, avoiding pulling
// the regexp engine into a hot validation path.
package grammars

import (
	"strings"
)

//TODO: reevaluate LDAPSuffixRegex against current DNS RFCs

// LDAPSuffixRegex is a regex for matching LDAP suffixes like `dc=example,dc=com`.
//
// This is only shown for documentation purposes here; use func IsLDAPSuffix instead.
const LDAPSuffixRegex = `^dc=[a-z0-9_-]+(?:,dc=[a-z0-9_-]+)*$`

// IsLDAPSuffix returns whether the string matches LDAPSuffixRegex.
func IsLDAPSuffix(input string) bool {
	for _, field := range strings.Split(input, ",") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return false
		}
		if key != "dc" {
			return false
		}
		if len(value) == 0 {
			return false
		}
		if !checkEachByte([]byte(value), checkByteInDomainComponent) {
			return false
		}
	}
	return true
}

func checkByteInDomainComponent(idx, length int, b byte) bool {
	_ = length
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	default:
		return false
	}
}

// Helper function: Returns whether each byte in the input is accepted by `check`.
func checkEachByte(bytes []byte, check func(idx, length int, b byte) bool) bool {
	l := len(bytes)
	for idx, b := range bytes {
		if !check(idx, l, b) {
			return false
		}
	}
	return true
}
