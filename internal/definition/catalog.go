package definition

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/model"
)

// Catalog assembles the registry contents from built-in definitions and
// definition directories. File definitions with the id of a built-in
// replace it in place.
type Catalog struct {
	registry  *Registry
	loader    *Loader
	validator *Validator
	builtins  []model.WorkflowDefinition
	dirs      []string
	logger    *zap.Logger
}

// NewCatalog creates a Catalog that publishes into registry.
func NewCatalog(
	registry *Registry,
	validator *Validator,
	builtins []model.WorkflowDefinition,
	dirs []string,
	logger *zap.Logger,
) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		registry:  registry,
		loader:    NewLoader(),
		validator: validator,
		builtins:  builtins,
		dirs:      dirs,
		logger:    logger,
	}
}

// Reload loads and validates every source and swaps the registry contents.
// On any error the registry is left untouched.
func (c *Catalog) Reload() error {
	fileDefs, err := c.loader.LoadAll(c.dirs)
	if err != nil {
		return err
	}

	all := make([]model.WorkflowDefinition, 0, len(c.builtins)+len(fileDefs))
	all = append(all, c.builtins...)
	all = append(all, fileDefs...)

	if verrs := c.validator.Validate(fileDefs); len(verrs) > 0 {
		return joinVErrors(verrs)
	}
	if verrs := c.validator.Validate(c.builtins); len(verrs) > 0 {
		return joinVErrors(verrs)
	}

	c.registry.Replace(all)
	c.logger.Info("workflow definitions loaded",
		zap.Int("builtin", len(c.builtins)),
		zap.Int("files", len(fileDefs)),
		zap.Int("total", c.registry.Len()),
		zap.String("checksum", c.registry.Checksum()),
	)
	return nil
}

// Dirs returns the watched definition directories.
func (c *Catalog) Dirs() []string {
	return c.dirs
}

func joinVErrors(verrs []VError) error {
	errs := make([]error, 0, len(verrs))
	for _, ve := range verrs {
		errs = append(errs, ve)
	}
	return fmt.Errorf("invalid workflow definitions: %w", errors.Join(errs...))
}
