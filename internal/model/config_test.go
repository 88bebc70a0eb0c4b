// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLDAPConfigValidateBaseDN(t *testing.T) {
	base := LDAPConfig{
		ServerURI:    "ldaps://ldap.example.org:636",
		BindDN:       "cn=admin,dc=example,dc=com",
		BindPassword: "secret",
		UseSSL:       true,
	}

	t.Run("valid suffix", func(t *testing.T) {
		cfg := base
		cfg.BaseDN = "dc=example,dc=com"
		require.Empty(t, cfg.Validate())
	})

	t.Run("empty suffix", func(t *testing.T) {
		cfg := base
		cfg.BaseDN = ""
		errs := cfg.Validate()
		require.NotEmpty(t, errs)
	})

	t.Run("malformed suffix", func(t *testing.T) {
		cfg := base
		cfg.BaseDN = "ou=people,dc=example,dc=com"
		errs := cfg.Validate()
		require.NotEmpty(t, errs)
	})

	t.Run("scheme mismatch still reported alongside suffix check", func(t *testing.T) {
		cfg := base
		cfg.BaseDN = "dc=example,dc=com"
		cfg.UseSSL = false
		errs := cfg.Validate()
		require.NotEmpty(t, errs)
	})
}
