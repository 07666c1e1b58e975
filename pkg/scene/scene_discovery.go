package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/loaders"
)

// DefaultSceneID names the built-in demo scene
const DefaultSceneID = "default"

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`                 // Unique identifier
	Name        string `json:"name"`               // Scene name
	DisplayName string `json:"displayName"`        // UI display name
	Description string `json:"description"`        // Optional description
	Type        string `json:"type"`               // "builtin" or "yaml"
	FilePath    string `json:"filePath,omitempty"` // Path to the scene file (yaml type only)
}

// ListYAMLScenes scans dir for *.yaml and *.yml scene files. A missing
// directory yields an empty list.
func ListYAMLScenes(dir string, logger core.Logger) ([]SceneInfo, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}
	if _, err := os.Stat(dir); err != nil {
		return []SceneInfo{}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
		}
		files = append(files, matches...)
	}

	scenes := []SceneInfo{}
	for _, filePath := range files {
		info, err := ParseYAMLMetadata(filePath)
		if err != nil {
			logger.Printf("Warning: failed to parse metadata for %s: %v\n", filePath, err)
			continue
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})
	return scenes, nil
}

// ParseYAMLMetadata reads the header of a scene file, falling back to the
// file name when it has none
func ParseYAMLMetadata(filePath string) (SceneInfo, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	info := SceneInfo{
		ID:          "yaml:" + nameWithoutExt,
		Name:        titleCase(nameWithoutExt),
		DisplayName: titleCase(nameWithoutExt),
		Type:        "yaml",
		FilePath:    filePath,
	}

	metadata, err := loaders.ReadSceneMetadata(filePath)
	if err != nil {
		return info, err
	}
	if metadata.Name != "" {
		info.Name = metadata.Name
		info.DisplayName = metadata.Name
	}
	info.Description = metadata.Description
	return info, nil
}

type builtinScene struct {
	info  SceneInfo
	build func() *Scene
}

var builtinScenes = []builtinScene{
	{
		info: SceneInfo{
			ID:          DefaultSceneID,
			Name:        "Default Scene",
			DisplayName: "Default Scene",
			Description: "Ground, diffuse, metal and glass spheres lit by an orange sphere light",
			Type:        "builtin",
		},
		build: NewDefaultScene,
	},
	{
		info: SceneInfo{
			ID:          SphereGridSceneID,
			Name:        "Sphere Grid",
			DisplayName: "Sphere Grid",
			Description: "400 rough metal spheres in an OKLCH color sweep",
			Type:        "builtin",
		},
		build: NewSphereGridScene,
	},
}

// Builtin builds the built-in scene with the given id
func Builtin(id string) (*Scene, bool) {
	for _, b := range builtinScenes {
		if b.info.ID == id {
			return b.build(), true
		}
	}
	return nil, false
}

// IsBuiltin reports whether id names a built-in scene without building it
func IsBuiltin(id string) bool {
	for _, b := range builtinScenes {
		if b.info.ID == id {
			return true
		}
	}
	return false
}

// ListAllScenes returns the built-in scenes followed by the scene files in dir
func ListAllScenes(dir string, logger core.Logger) ([]SceneInfo, error) {
	scenes := make([]SceneInfo, 0, len(builtinScenes))
	for _, b := range builtinScenes {
		scenes = append(scenes, b.info)
	}

	yamlScenes, err := ListYAMLScenes(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to list scene files: %w", err)
	}
	return append(scenes, yamlScenes...), nil
}

// Load resolves a scene reference: a built-in id, a discovered scene id
// such as "yaml:spheres", or a path to a scene file
func Load(ref, dir string) (*Scene, error) {
	if ref == "" {
		ref = DefaultSceneID
	}
	if s, ok := Builtin(ref); ok {
		return s, nil
	}

	switch {
	case strings.HasPrefix(ref, "yaml:"):
		name := strings.TrimPrefix(ref, "yaml:")
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return LoadYAML(path)
			}
		}
		return nil, fmt.Errorf("scene %q not found in %s", ref, dir)
	default:
		return LoadYAML(ref)
	}
}

// titleCase converts a filename-style string to title case
// e.g., "glass-spheres" -> "Glass Spheres"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
