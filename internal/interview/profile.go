// Package interview holds the interviewer persona: instructions, greeting,
// resume handling and recognition keywords.
package interview

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adhney/voice-interviewer/internal/apperr"
)

//go:embed default_profile.yaml
var defaultProfileYAML []byte

const resumePlaceholder = "{{resume}}"

// Keyword biases speech recognition toward a domain term.
type Keyword struct {
	Term  string `yaml:"term"`
	Boost int    `yaml:"boost"`
}

// String renders the keyword in "term:boost" form.
func (k Keyword) String() string {
	return fmt.Sprintf("%s:%d", k.Term, k.Boost)
}

type Profile struct {
	Name          string    `yaml:"name"`
	Role          string    `yaml:"role"`
	Instructions  string    `yaml:"instructions"`
	ResumeSection string    `yaml:"resume_section"`
	NoResumeNote  string    `yaml:"no_resume_note"`
	Greeting      string    `yaml:"greeting"`
	Keywords      []Keyword `yaml:"keywords"`
}

// DefaultProfile returns the built-in banking interviewer.
func DefaultProfile() *Profile {
	p, err := parseProfile(defaultProfileYAML)
	if err != nil {
		panic("interview: embedded profile is invalid: " + err.Error())
	}
	return p
}

// LoadProfile reads a YAML profile from path. Fields the file leaves empty
// are taken from the default profile. An empty path returns the default.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configuration(fmt.Sprintf("read interview profile %s: %v", path, err))
	}
	p, err := parseProfile(data)
	if err != nil {
		return nil, apperr.Configuration(fmt.Sprintf("parse interview profile %s: %v", path, err))
	}
	p.fillFrom(DefaultProfile())
	return p, nil
}

func parseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) fillFrom(d *Profile) {
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.Role == "" {
		p.Role = d.Role
	}
	if p.Instructions == "" {
		p.Instructions = d.Instructions
	}
	if p.ResumeSection == "" {
		p.ResumeSection = d.ResumeSection
	}
	if p.NoResumeNote == "" {
		p.NoResumeNote = d.NoResumeNote
	}
	if p.Greeting == "" {
		p.Greeting = d.Greeting
	}
	if len(p.Keywords) == 0 {
		p.Keywords = d.Keywords
	}
}

// BuildInstructions returns the system instructions for a session. A
// non-blank resume, cut to maxLen characters, is placed in the resume
// section; otherwise the no-resume note is appended.
func (p *Profile) BuildInstructions(resume string, maxLen int) string {
	if strings.TrimSpace(resume) == "" {
		return p.Instructions + p.NoResumeNote
	}
	resume = truncate(resume, maxLen)
	section := p.ResumeSection
	if !strings.Contains(section, resumePlaceholder) {
		section += "\n" + resumePlaceholder + "\n"
	}
	return p.Instructions + strings.ReplaceAll(section, resumePlaceholder, resume)
}

// KeywordStrings renders all keywords in "term:boost" form.
func (p *Profile) KeywordStrings() []string {
	out := make([]string, 0, len(p.Keywords))
	for _, k := range p.Keywords {
		if k.Term == "" {
			continue
		}
		out = append(out, k.String())
	}
	return out
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// ResumeFromMetadata extracts resume_text from a room metadata JSON
// document. It reports false for empty or malformed metadata and when the
// field is missing or empty.
func ResumeFromMetadata(metadata string) (string, bool) {
	if strings.TrimSpace(metadata) == "" {
		return "", false
	}
	var m struct {
		ResumeText string `json:"resume_text"`
	}
	if err := json.Unmarshal([]byte(metadata), &m); err != nil {
		return "", false
	}
	if m.ResumeText == "" {
		return "", false
	}
	return m.ResumeText, true
}

// RoomMetadata builds the room metadata document carrying resume.
func RoomMetadata(resume string) (string, error) {
	if resume == "" {
		return "", nil
	}
	b, err := json.Marshal(struct {
		ResumeText string `json:"resume_text"`
	}{resume})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
