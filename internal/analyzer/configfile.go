package analyzer

import (
	"bufio"
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/seanblong/readmegen/pkg/models"
)

// ConfigExcerptChars bounds the raw excerpt kept for config files.
const ConfigExcerptChars = 8000

// ConfigFile keeps the head of a config file and reads the dependency names
// it declares.
type ConfigFile struct{}

func (c *ConfigFile) Analyze(text, filename string) models.FileAnalysis {
	fa := models.FileAnalysis{
		Filename:    filename,
		Kind:        models.KindConfig,
		CodeExcerpt: headChars(text, ConfigExcerptChars),
	}

	var deps []string
	var err error
	switch filename {
	case "package.json":
		deps, err = packageJSONDeps(text)
	case "requirements.txt":
		deps = requirementsDeps(text)
	case "pyproject.toml":
		deps, err = pyprojectDeps(text)
	case "docker-compose.yml", "docker-compose.yaml":
		deps, err = composeImages(text)
	case "Dockerfile":
		deps = dockerfileImages(text)
	case "tsconfig.json":
		deps = []string{"typescript"}
	case ".env.example", ".env.sample", "env.example":
		deps = envKeys(text)
	}
	if err != nil {
		log.Debug().Err(err).Str("file", filename).Msg("could not read dependencies from config file")
	}

	frameworks := newOrderedSet()
	feats := newOrderedSet()
	for _, d := range deps {
		frameworks.add(frameworksForModule(d)...)
		feats.add(featuresForName(d)...)
	}
	fa.FrameworksDetected = frameworks.items
	fa.FeaturesDetected = feats.items
	return fa
}

// headChars keeps at most n bytes of text without splitting a rune.
func headChars(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

func packageJSONDeps(text string) ([]string, error) {
	var pkg struct {
		Dependencies     map[string]string `json:"dependencies"`
		DevDependencies  map[string]string `json:"devDependencies"`
		PeerDependencies map[string]string `json:"peerDependencies"`
	}
	if err := json.Unmarshal([]byte(text), &pkg); err != nil {
		return nil, err
	}
	var deps []string
	for _, m := range []map[string]string{pkg.Dependencies, pkg.PeerDependencies, pkg.DevDependencies} {
		deps = append(deps, sortedKeys(m)...)
	}
	return deps, nil
}

var requirementNameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)

func requirementsDeps(text string) []string {
	var deps []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if m := requirementNameRe.FindStringSubmatch(line); m != nil {
			deps = append(deps, strings.ToLower(m[1]))
		}
	}
	return deps
}

func pyprojectDeps(text string) ([]string, error) {
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	deps := requirementsDeps(strings.Join(doc.Project.Dependencies, "\n"))
	for _, name := range sortedKeys(doc.Tool.Poetry.Dependencies) {
		if name == "python" {
			continue
		}
		deps = append(deps, strings.ToLower(name))
	}
	return deps, nil
}

func composeImages(text string) ([]string, error) {
	var doc struct {
		Services map[string]struct {
			Image string `yaml:"image"`
		} `yaml:"services"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	var images []string
	for _, name := range sortedKeys(doc.Services) {
		if img := imageName(doc.Services[name].Image); img != "" {
			images = append(images, img)
		}
	}
	return images, nil
}

var fromRe = regexp.MustCompile(`(?i)^\s*FROM\s+(?:--\S+\s+)*(\S+)`)

func dockerfileImages(text string) []string {
	var images []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		if m := fromRe.FindStringSubmatch(sc.Text()); m != nil {
			if img := imageName(m[1]); img != "" {
				images = append(images, img)
			}
		}
	}
	return images
}

// imageName strips registry, tag and digest: "docker.io/library/node:18" -> "node".
func imageName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.IndexAny(ref, ":@"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(ref)
}

func envKeys(text string) []string {
	var keys []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, _ := strings.Cut(line, "=")
		keys = append(keys, strings.TrimSpace(strings.TrimPrefix(key, "export ")))
	}
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
