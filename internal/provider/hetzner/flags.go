package hetzner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Config holds the validated Hetzner-specific flags.
type Config struct {
	APIKey        string
	NodePrefix    string
	NodeLabel     string
	NodeUserData  string
	NodeNetworks  []string
	NodeFirewalls []string
	NodeImage     string
	NodeType      string
	NodeLocation  string
	NodeSSHKeys   []string
}

// RegisterFlags adds the Hetzner provider's own flag fragment to flags,
// including the --hetzner_help flag that prints this fragment and exits.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("api_key", "", "Sets the API key to be used with Hetzner cloud")
	flags.String("node_prefix", "node-autopilot-", "Sets the node prefix to be used when creating new nodes")
	flags.String("node_label", "autopilot", "Sets a label on autoscaled nodes, helping the scaler know what to delete and keep")
	flags.String("node_user_data", "", "Sets base64-encoded Cloud-Init user data to use during server creation (limited to 32KiB)")
	flags.String("node_networks", "", "Comma-separated list of networks attached to the node during creation")
	flags.String("node_firewalls", "", "Comma-separated list of firewalls attached to the node during creation")
	flags.String("node_image", "", "Sets the image the node is created with")
	flags.String("node_type", "", "Sets what type of node is created")
	flags.String("node_location", "", "Sets the node location on node creation")
	flags.String("node_ssh_keys", "", "Comma-separated list of SSH keys assigned to the server on creation")
	flags.Bool("hetzner_help", false, "Print Hetzner provider flag help and exit")
}

// LoadConfig reads and validates the Hetzner flag fragment out of flags.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	apiKey, _ := flags.GetString("api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("hetzner: --api_key must be set when using Hetzner as a provider")
	}

	nodeImage, _ := flags.GetString("node_image")
	if nodeImage == "" {
		return nil, fmt.Errorf("hetzner: --node_image must be set when using Hetzner as a provider")
	}

	nodeType, _ := flags.GetString("node_type")
	if nodeType == "" {
		return nil, fmt.Errorf("hetzner: --node_type must be set when using Hetzner as a provider")
	}

	nodeLocation, _ := flags.GetString("node_location")
	if nodeLocation == "" {
		return nil, fmt.Errorf("hetzner: --node_location must be set when using Hetzner as a provider")
	}

	nodePrefix, _ := flags.GetString("node_prefix")
	nodeLabel, _ := flags.GetString("node_label")
	nodeUserDataB64, _ := flags.GetString("node_user_data")
	nodeNetworksRaw, _ := flags.GetString("node_networks")
	nodeFirewallsRaw, _ := flags.GetString("node_firewalls")
	nodeSSHKeysRaw, _ := flags.GetString("node_ssh_keys")

	userData, err := decodeUserData(nodeUserDataB64)
	if err != nil {
		return nil, fmt.Errorf("hetzner: decoding --node_user_data: %w", err)
	}

	return &Config{
		APIKey:        apiKey,
		NodePrefix:    nodePrefix,
		NodeLabel:     nodeLabel,
		NodeUserData:  userData,
		NodeNetworks:  splitCSV(nodeNetworksRaw),
		NodeFirewalls: splitCSV(nodeFirewallsRaw),
		NodeImage:     nodeImage,
		NodeType:      nodeType,
		NodeLocation:  nodeLocation,
		NodeSSHKeys:   splitCSV(nodeSSHKeysRaw),
	}, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// validateNetworkIDs confirms every configured network is a Hetzner numeric
// network ID; the create payload attaches networks by ID, not by name.
func validateNetworkIDs(networks []string) error {
	for _, n := range networks {
		if n == "" {
			continue
		}
		if _, err := strconv.Atoi(n); err != nil {
			return fmt.Errorf("hetzner: --node_networks entry %q is not a numeric network ID", n)
		}
	}
	return nil
}
