package reference

import (
	"fmt"
	"os"
	"strings"

	"fleettrack-service/internal/domain/entity"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// depotFile is the on-disk layout of the static depot list
type depotFile struct {
	Depots []entity.Depot `yaml:"depots"`
}

// LoadDepots reads and validates the static depot list from a YAML file
func LoadDepots(path string) ([]entity.Depot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read depots file %q: %w", path, err)
	}
	return ParseDepots(data)
}

// ParseDepots decodes and validates a YAML depot list. Names must be unique
// because depots are looked up by name.
func ParseDepots(data []byte) ([]entity.Depot, error) {
	var file depotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse depots: %w", err)
	}

	v := validator.New()
	seen := make(map[string]struct{}, len(file.Depots))
	for i := range file.Depots {
		d := &file.Depots[i]
		d.Name = strings.TrimSpace(d.Name)
		if err := v.Struct(d); err != nil {
			return nil, fmt.Errorf("%w: depot %d (%q): %v", entity.ErrInvalidDepot, i, d.Name, err)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate depot name %q", entity.ErrInvalidDepot, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return file.Depots, nil
}
