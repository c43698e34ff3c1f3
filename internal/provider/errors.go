package provider

import "fmt"

// ErrUnknownProvider reports a --node_scale_provider value with no
// registered factory.
type ErrUnknownProvider string

func (e ErrUnknownProvider) Error() string {
	return fmt.Sprintf("provider: no provider registered for %q", string(e))
}
