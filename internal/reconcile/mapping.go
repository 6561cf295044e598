// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package reconcile

import "fmt"

// Mapping binds one settings.json key to its env file counterpart.
type Mapping struct {
	// SettingsKey is the camel-case key in Runtipi's settings document.
	SettingsKey string

	// EnvKey is the target key in the env file.
	EnvKey string
}

// DefaultKeyMappings is the allow-list of settings keys the reconciler
// propagates into the env file. Unlisted settings keys are ignored; env keys
// without a mapping are never touched. The order fixes the order of change
// log entries, nothing else.
var DefaultKeyMappings = []Mapping{
	{SettingsKey: "port", EnvKey: "NGINX_PORT"},
	{SettingsKey: "sslPort", EnvKey: "NGINX_PORT_SSL"},
	{SettingsKey: "domain", EnvKey: "DOMAIN"},
	{SettingsKey: "localDomain", EnvKey: "LOCAL_DOMAIN"},
	{SettingsKey: "dnsIp", EnvKey: "DNS_IP"},
	{SettingsKey: "internalIp", EnvKey: "INTERNAL_IP"},
	{SettingsKey: "timeZone", EnvKey: "TZ"},
	{SettingsKey: "appsRepoUrl", EnvKey: "APPS_REPO_URL"},
	{SettingsKey: "postgresPort", EnvKey: "POSTGRES_PORT"},
	{SettingsKey: "demoMode", EnvKey: "DEMO_MODE"},
	{SettingsKey: "guestDashboard", EnvKey: "GUEST_DASHBOARD"},
	{SettingsKey: "allowAutoThemes", EnvKey: "ALLOW_AUTO_THEMES"},
	{SettingsKey: "allowErrorMonitoring", EnvKey: "ALLOW_ERROR_MONITORING"},
	{SettingsKey: "persistTraefikConfig", EnvKey: "PERSIST_TRAEFIK_CONFIG"},
}

// validateMappings rejects tables where two settings keys target the same env
// key: the last writer would win silently, which is never intended.
func validateMappings(mappings []Mapping) error {
	seen := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.SettingsKey == "" || m.EnvKey == "" {
			return fmt.Errorf("incomplete mapping %q -> %q", m.SettingsKey, m.EnvKey)
		}
		if prev, ok := seen[m.EnvKey]; ok {
			return fmt.Errorf("duplicate mapping target %s (from %s and %s)", m.EnvKey, prev, m.SettingsKey)
		}
		seen[m.EnvKey] = m.SettingsKey
	}
	return nil
}
