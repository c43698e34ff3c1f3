package provider

import (
	"context"

	"github.com/cuemby/swarm-autopilot/pkg/types"
	"github.com/spf13/pflag"
)

// Provider abstracts the IaaS layer. Every node a Provider surfaces must
// carry the Type=<configured-label> marker so ListNodes returns exactly the
// set the autoscaler owns.
type Provider interface {
	// ListNodes enumerates every autoscaler-owned node, paginating until
	// exhaustion. A non-success response is surfaced as an error; callers
	// treat a failed listing as "skip node logic this tick".
	ListNodes(ctx context.Context) ([]types.ProviderNode, error)

	// CreateNode provisions a node with initial labels
	// {Type: <label>, Status: Creating} and a random
	// <prefix><15 lowercase-alnum> name.
	CreateNode(ctx context.Context) (types.ProviderNode, error)

	// DeleteNode destroys the node identified by id.
	DeleteNode(ctx context.Context, id string) bool

	// UpdateLabels fully replaces (not merges) the labels on the node
	// identified by id.
	UpdateLabels(ctx context.Context, id string, labels map[string]string) bool
}

// Factory builds a Provider by reading its own flag fragment out of the
// already-parsed root flag set.
type Factory func(flags *pflag.FlagSet) (Provider, error)

// Registry maps provider names to factories. Every provider package
// registers itself here via a blank import from cmd/autopilot, so the set
// of usable providers is closed under whatever the binary links — there
// is no runtime module loading.
var Registry = map[string]Factory{}

// flagRegistrars adds every registered provider's flags to the root flag
// set before parsing. Every provider's flags are registered regardless of
// which --node_scale_provider is eventually selected, since the selector
// itself is read off the same flag set.
var flagRegistrars = map[string]func(*pflag.FlagSet){}

// Register adds a named provider factory and its flag registrar to the
// registry. Called from each provider package's init().
func Register(name string, registerFlags func(*pflag.FlagSet), factory Factory) {
	Registry[name] = factory
	flagRegistrars[name] = registerFlags
}

// RegisterAllFlags adds every registered provider's flag fragment to flags.
// Call once, before the root command parses argv.
func RegisterAllFlags(flags *pflag.FlagSet) {
	for _, register := range flagRegistrars {
		register(flags)
	}
}

// HelpRequested reports whether the user set a provider's
// --<name>_help flag, identifying which provider's fragment to print.
// Checked before any other startup validation so the help flag works on
// an otherwise bare command line.
func HelpRequested(flags *pflag.FlagSet) (string, bool) {
	for name := range flagRegistrars {
		if flags.Lookup(name+"_help") == nil {
			continue
		}
		if set, err := flags.GetBool(name + "_help"); err == nil && set {
			return name, true
		}
	}
	return "", false
}

// FragmentUsage renders the named provider's flag fragment as help text.
func FragmentUsage(name string) string {
	register, ok := flagRegistrars[name]
	if !ok {
		return ""
	}
	fragment := pflag.NewFlagSet(name, pflag.ContinueOnError)
	register(fragment)
	return fragment.FlagUsages()
}

// Build looks up name in Registry and invokes its factory against the
// already-parsed flags.
func Build(name string, flags *pflag.FlagSet) (Provider, error) {
	factory, ok := Registry[name]
	if !ok {
		return nil, ErrUnknownProvider(name)
	}
	return factory(flags)
}
