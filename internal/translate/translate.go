// Package translate maps the validators' internal failure taxonomy onto the
// small user-facing error vocabulary. The mapping is checked for totality at
// construction time, so an unhandled kind is a startup failure instead of a
// leaked internal detail.
package translate

import (
	"fmt"

	"vigil/internal/translate/metrics"
	"vigil/internal/validation"
)

var categoryByKind = map[validation.ErrorKind]validation.Category{
	validation.KindNotFound:           validation.CategoryInvalidCredentials,
	validation.KindExpired:            validation.CategoryInvalidCredentials,
	validation.KindMalformed:          validation.CategoryInvalidCredentials,
	validation.KindCrossTenantDenied:  validation.CategoryAccessDenied,
	validation.KindAccessInsufficient: validation.CategoryAccessDenied,
	validation.KindInternalFault:      validation.CategoryUnavailable,
}

var messageByCategory = map[validation.Category]string{
	validation.CategoryInvalidCredentials: "The credential is not valid. Obtain a new credential and retry.",
	validation.CategoryAccessDenied:       "Access to the requested resource is denied.",
	validation.CategoryUnavailable:        "Validation is temporarily unavailable. Retry shortly.",
}

// Translator is the production validation.Translator implementation.
type Translator struct {
	metrics *metrics.Metrics
}

// New constructs the translator and verifies the mapping covers every kind
// either validator can produce.
func New(m *metrics.Metrics) (*Translator, error) {
	for _, kind := range validation.AllErrorKinds() {
		category, ok := categoryByKind[kind]
		if !ok {
			return nil, fmt.Errorf("translate: no category mapped for error kind %q", kind)
		}
		if _, ok := messageByCategory[category]; !ok {
			return nil, fmt.Errorf("translate: no message for category %q", category)
		}
	}
	return &Translator{metrics: m}, nil
}

// Translate converts an internal kind into the caller-visible error. The
// same credential failure translates identically regardless of which
// validator produced it.
func (t *Translator) Translate(kind validation.ErrorKind, origin validation.Origin) validation.UserFacingError {
	category, ok := categoryByKind[kind]
	if !ok {
		// Unreachable after New's totality check; unavailable is the safe
		// answer for anything novel.
		category = validation.CategoryUnavailable
	}
	t.metrics.IncTranslated(string(kind), string(origin), string(category))
	return validation.UserFacingError{
		Category: category,
		Message:  messageByCategory[category],
	}
}
