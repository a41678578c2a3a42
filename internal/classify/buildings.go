package classify

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// LoadBuildings reads the JSON array of building names at path. A missing
// or malformed file is logged and yields an empty set; it never stops the
// agent.
func LoadBuildings(path string, logger *zap.Logger) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Error("Buildings file not found", zap.String("path", path))
		} else {
			logger.Error("Failed to read buildings file", zap.String("path", path), zap.Error(err))
		}
		return []string{}
	}

	var buildings []string
	if err := json.Unmarshal(data, &buildings); err != nil {
		logger.Error("Failed to parse buildings file", zap.String("path", path), zap.Error(err))
		return []string{}
	}

	logger.Info("Buildings loaded", zap.String("path", path), zap.Int("count", len(buildings)))
	return buildings
}
