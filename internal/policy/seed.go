// internal/policy/seed.go
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"freshtrack/internal/common/logger"
	"freshtrack/internal/models"
)

// SeedEntry is one category policy in the seed registry file.
type SeedEntry struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	WasteType         string `json:"waste_type"`
	Recyclable        bool   `json:"recyclable"`
	DiscountThreshold int    `json:"discount_threshold"`
}

// LoadSeedFile reads and validates the policy seed registry against its
// JSON schema.
func LoadSeedFile(seedPath, schemaPath string) ([]SeedEntry, error) {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy seed %s: %w", seedPath, err)
	}

	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy schema %s: %w", schemaPath, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate policy seed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("policy seed %s is invalid: %s", seedPath, strings.Join(problems, "; "))
	}

	var entries []SeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse policy seed: %w", err)
	}
	return entries, nil
}

// Seed loads the registry file and upserts every entry, so a fresh
// database starts with the standard category set.
func Seed(ctx context.Context, pg *PostgresStore, seedPath, schemaPath string, log logger.Logger) error {
	entries, err := LoadSeedFile(seedPath, schemaPath)
	if err != nil {
		return err
	}

	for _, e := range entries {
		p := &models.CategoryPolicy{
			Name:              e.Name,
			Description:       e.Description,
			WasteType:         models.WasteType(e.WasteType),
			Recyclable:        e.Recyclable,
			DiscountThreshold: e.DiscountThreshold,
		}
		if err := pg.Upsert(ctx, p); err != nil {
			return err
		}
	}

	log.Info("Policy seed loaded", map[string]interface{}{
		"path":       seedPath,
		"categories": len(entries),
	})
	return nil
}
