package lifecycle

import (
	"embed"
	"fmt"
)

// Kinds of the built-in templates.
const (
	KindEntity                   = "entity-lifecycle"
	KindApplication              = "application-lifecycle"
	KindOrganizationVerification = "organization-verification-lifecycle"
	KindInvitation               = "invitation-lifecycle"
	KindWhiteboardCheckout       = "whiteboard-checkout-lifecycle"
)

//go:embed templates/*.yaml
var builtinFS embed.FS

// BuiltinTemplates parses the embedded templates.
func BuiltinTemplates() ([]*Template, error) {
	return LoadTemplatesFromFS(builtinFS, "templates")
}

// RegisterBuiltins registers every built-in template with reg.
func RegisterBuiltins(reg *Registry) error {
	templates, err := BuiltinTemplates()
	if err != nil {
		return fmt.Errorf("failed to load built-in templates: %w", err)
	}

	for _, t := range templates {
		if err := reg.Register(t); err != nil {
			return err
		}
	}

	return nil
}

// NewBuiltinRegistry returns an unfrozen registry holding the built-in templates.
func NewBuiltinRegistry() (*Registry, error) {
	reg := NewRegistry()

	if err := RegisterBuiltins(reg); err != nil {
		return nil, err
	}

	return reg, nil
}
