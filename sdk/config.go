// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import (
	"bytes"
	"fmt"

	"sigs.k8s.io/yaml"
)

// UnmarshalConfig decodes a YAML or JSON filter configuration into v.
// Unknown fields are rejected. An empty configuration leaves v untouched.
func UnmarshalConfig(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := yaml.UnmarshalStrict(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
