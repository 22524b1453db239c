// Package numerator defines the device numbering contract consumed by the
// document engine. The implementation lives in domain/devices.
package numerator

import (
	"context"
	"fmt"
	"strings"
)

// Number is a freshly allocated document number.
type Number struct {
	DocumentNumber string `json:"documentNumber"`
	Counter        int64  `json:"nextCounter"`
}

// Generator allocates human-readable document numbers per TSD device.
// Increment-and-read is atomic per device, so concurrent callers never
// receive the same number.
type Generator interface {
	// NextDocumentNumber returns "{prefix}-{TYPE}-{counter:06d}".
	NextDocumentNumber(ctx context.Context, deviceID, typeTag string) (Number, error)
}

// Format renders a document number.
func Format(prefix, typeTag string, counter int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, strings.ToUpper(typeTag), counter)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, deviceID, typeTag string) (Number, error)

// NextDocumentNumber implements Generator.
func (f GeneratorFunc) NextDocumentNumber(ctx context.Context, deviceID, typeTag string) (Number, error) {
	return f(ctx, deviceID, typeTag)
}
