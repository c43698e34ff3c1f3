// Package hetzner implements provider.Provider against the Hetzner Cloud
// REST API: bearer-token auth, page/per_page pagination, and a
// label_selector filter on Type to enumerate autoscaler-owned servers.
package hetzner
