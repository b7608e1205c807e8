package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/scam-sim/pkg/prompts"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <catalog.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &CatalogValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Scenario catalog is valid!")
}

// MaxInitialMessageRunes keeps opening lines short enough for the chat view.
const MaxInitialMessageRunes = 200

type CatalogValidator struct {
	errors []string
}

type catalogFile struct {
	Scenarios []scenario.Config `yaml:"scenarios"`
}

func (v *CatalogValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	ext := filepath.Ext(filename)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("catalog file must have .yaml or .yml extension: %s", filepath.Base(filename))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return v.validate(data)
}

func (v *CatalogValidator) validate(data []byte) error {
	v.errors = nil

	var doc catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("catalog failed strict YAML unmarshaling: %w", err)
	}

	if len(doc.Scenarios) == 0 {
		return fmt.Errorf("catalog has no scenarios")
	}

	seen := make(map[scenario.ID]bool, len(doc.Scenarios))
	markets := 0
	for i, c := range doc.Scenarios {
		label := fmt.Sprintf("scenario %d (%s)", i, c.ID)
		if seen[c.ID] {
			v.addError(fmt.Sprintf("%s: duplicate id", label))
		}
		seen[c.ID] = true
		if c.IsMarket() {
			markets++
		}
		v.validateScenario(c, label)
	}

	if markets > 1 {
		v.addError(fmt.Sprintf("catalog has %d market scenarios; the market engine supports one", markets))
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *CatalogValidator) validateScenario(c scenario.Config, label string) {
	if err := c.Validate(); err != nil {
		v.addError(fmt.Sprintf("%s: %v", label, err))
	}

	if c.ID != "" && !isValidID(string(c.ID)) {
		v.addError(fmt.Sprintf("%s: id should be upper snake case (e.g. CHAT_REBATE)", label))
	}

	if n := utf8.RuneCountInString(c.InitialMessage); n > MaxInitialMessageRunes {
		v.addError(fmt.Sprintf("%s: initial_message is %d characters, limit is %d", label, n, MaxInitialMessageRunes))
	}

	if c.IsMarket() {
		return
	}

	if strings.TrimSpace(c.ScammerPersona) == "" || strings.TrimSpace(c.Goal) == "" {
		v.addError(fmt.Sprintf("%s: chat scenarios need scammer_persona and goal", label))
		return
	}

	if _, err := prompts.New().WithPersona(c.ScammerPersona).WithGoal(c.Goal).Build(); err != nil {
		v.addError(fmt.Sprintf("%s: persona prompt does not render: %v", label, err))
	}
}

func (v *CatalogValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*[A-Z0-9]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
