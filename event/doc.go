/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package event normalizes raw platform event payloads into the uniform
// snapshot the rest of the pipeline consumes. Normalization is a fixed
// projection per event family; missing optional fields become empty values,
// never nils and never errors. Only an unreadable payload fails.
package event
