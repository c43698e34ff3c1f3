// Package provider abstracts the IaaS layer the autoscaler creates and
// destroys nodes against. Concrete implementations (internal/provider/hetzner)
// register themselves in Registry at init() time; there is no runtime
// module loading.
package provider
