package scenario

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Placeholder is returned for identifiers the catalog does not know.
var Placeholder = Config{
	Kind:           KindChat,
	Title:          "未知场景",
	InitialMessage: "...",
	ScammerPersona: "骗子",
	Goal:           "骗钱",
	Difficulty:     1,
	Platform:       PlatformWeChat,
}

// QuickReplies are the canned player messages offered at the start of a chat.
var QuickReplies = []string{
	"你是谁？",
	"我要报警了！",
	"真的吗？我要核实一下。",
	"我不信，除非你视频。",
}

// QuickReplyLimit is the transcript length after which quick replies are hidden.
const QuickReplyLimit = 10

var (
	catalog map[ID]Config
	ordered []Config
)

func init() {
	list, err := parseCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("scenario: invalid embedded catalog: %v", err))
	}
	ordered = list
	catalog = make(map[ID]Config, len(list))
	for _, c := range list {
		catalog[c.ID] = c
	}
}

func parseCatalog(data []byte) ([]Config, error) {
	var doc struct {
		Scenarios []Config `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[ID]bool, len(doc.Scenarios))
	for i, c := range doc.Scenarios {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d (%s): %w", i, c.ID, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate scenario id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return doc.Scenarios, nil
}

// Validate checks that a config is usable by the engines.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Title == "" || c.InitialMessage == "" {
		return fmt.Errorf("title and initial_message are required")
	}
	if c.Difficulty < 1 || c.Difficulty > 5 {
		return fmt.Errorf("difficulty must be between 1 and 5, got %d", c.Difficulty)
	}
	switch c.Platform {
	case PlatformWeChat, PlatformSMS, PlatformDating, PlatformService:
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	switch c.Kind {
	case KindChat, KindMarket:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}

// Get returns the config for id, or the placeholder config when id is unknown.
func Get(id ID) Config {
	if c, ok := catalog[id]; ok {
		return c
	}
	p := Placeholder
	p.ID = id
	return p
}

// Known reports whether id is in the catalog.
func Known(id ID) bool {
	_, ok := catalog[id]
	return ok
}

// List returns every catalog entry in menu order.
func List() []Config {
	out := make([]Config, len(ordered))
	copy(out, ordered)
	return out
}
