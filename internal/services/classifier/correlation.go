package classifier

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"docdesk/internal/config"
	"docdesk/internal/services"
)

var uuidPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`)

// CorrelationID derives the upstream request identifier for a document.
//
// In uuid mode the first UUID found in originalFilename wins, then the one in
// the basename of filePath. In stem mode the stem of originalFilename is used,
// falling back to the stem of filePath.
func CorrelationID(mode, originalFilename, filePath string) (string, error) {
	base := path.Base(filepath.ToSlash(filePath))
	if filePath == "" {
		base = ""
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case config.CorrelationStem:
		for _, name := range []string{originalFilename, base} {
			if stem := stemOf(name); stem != "" {
				return stem, nil
			}
		}
	default:
		for _, name := range []string{originalFilename, base} {
			if id := uuidPattern.FindString(name); id != "" {
				return id, nil
			}
		}
	}
	return "", services.Wrap(services.ErrInvalidFilename, component, "correlation id",
		"no identifier in filename "+originalFilename, nil)
}

func stemOf(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	return strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
}
