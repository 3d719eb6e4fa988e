package script

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ugckit/ugckit/internal/config"
)

// Script markdown grammar, line anchored:
//
//	### Script A1: "Day 347 of learning"
//	**Persona:** tired language student
//	**Clip 1 (6s):**
//	Says: "Okay so check this out..."
//	[screencast: stats @ 1.5-4.0 mode:pip]
var (
	scriptHeaderRe = regexp.MustCompile(`(?m)^###\s+Script\s+(\w+):\s+["']?(.+?)["']?\s*(?:\(|$)`)
	clipHeaderRe   = regexp.MustCompile(`\*\*Clip\s+(\d+)\s*\((?:.*?(\d+)s|[^)]*)\):\*\*`)
	saysRe         = regexp.MustCompile(`(?s)Says:\s*"([^"]+)"`)
	personaRe      = regexp.MustCompile(`\*\*(?:Persona|Character):\*\*\s*(.+)`)

	tagRe        = regexp.MustCompile(`(?i)\[screencast:\s*([^\]]*)\]`)
	numericTagRe = regexp.MustCompile(`(?i)^([\w\-.]+)\s*@\s*([\d.]+)s?\s*-\s*([\d.]+)s?\s*(?:mode:(\w+))?$`)
	keywordTagRe = regexp.MustCompile(`(?i)^([\w\-.]+)\s*@\s*word:"([^"]+)"\s*-\s*word:"([^"]+)"\s*(?:mode:(\w+))?$`)
)

// ParseFile parses every script section in a markdown file.
func ParseFile(path string) ([]*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}

	scripts, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return scripts, nil
}

// ParseDir parses all *.md files in a directory, sorted by filename.
func ParseDir(dir string) ([]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scripts dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var scripts []*Script
	for _, name := range names {
		parsed, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, parsed...)
	}
	return scripts, nil
}

// Parse extracts all script sections from markdown content.
func Parse(content string) ([]*Script, error) {
	headers := scriptHeaderRe.FindAllStringSubmatchIndex(content, -1)

	var scripts []*Script
	for i, loc := range headers {
		id := content[loc[2]:loc[3]]
		title := strings.Trim(content[loc[4]:loc[5]], `"'`)

		start := loc[1]
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}

		s, err := parseSection(content[start:end], id, title)
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", id, err)
		}
		scripts = append(scripts, s)
	}

	return scripts, nil
}

func parseSection(content, id, title string) (*Script, error) {
	s := &Script{ID: id, Title: title}

	if m := personaRe.FindStringSubmatch(content); m != nil {
		s.Persona = strings.TrimSpace(m[1])
	}

	clips := clipHeaderRe.FindAllStringSubmatchIndex(content, -1)
	for i, loc := range clips {
		index, _ := strconv.Atoi(content[loc[2]:loc[3]])

		var declared float64
		if loc[4] >= 0 {
			declared, _ = strconv.ParseFloat(content[loc[4]:loc[5]], 64)
		}

		bodyStart := loc[1]
		bodyEnd := len(content)
		if i+1 < len(clips) {
			bodyEnd = clips[i+1][0]
		}
		body := content[bodyStart:bodyEnd]

		says := saysRe.FindStringSubmatch(body)
		if says == nil {
			continue
		}

		overlays, err := ParseOverlayTags(body)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", index, err)
		}

		s.Segments = append(s.Segments, Segment{
			Index:    index,
			Text:     strings.TrimSpace(says[1]),
			Duration: declared,
			Overlays: overlays,
		})
	}

	return s, nil
}

// ParseOverlayTags extracts and validates every [screencast: ...] tag.
// Numeric form: file @ start-end mode:m. Keyword form:
// file @ word:"phrase"-word:"phrase" mode:m. A tag matching neither form is
// a configuration error, not a silent skip.
func ParseOverlayTags(text string) ([]Overlay, error) {
	var overlays []Overlay

	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])

		if km := keywordTagRe.FindStringSubmatch(body); km != nil {
			mode, err := ParseMode(km[4])
			if err != nil {
				return nil, err
			}
			startPhrase := strings.TrimSpace(km[2])
			endPhrase := strings.TrimSpace(km[3])
			if startPhrase == "" || endPhrase == "" {
				return nil, config.Errorf("screencast", "empty keyword phrase in tag %q", m[0])
			}
			overlays = append(overlays, Overlay{
				File:        ensureExtension(km[1]),
				Mode:        mode,
				StartPhrase: startPhrase,
				EndPhrase:   endPhrase,
			})
			continue
		}

		if nm := numericTagRe.FindStringSubmatch(body); nm != nil {
			start, err1 := strconv.ParseFloat(nm[2], 64)
			end, err2 := strconv.ParseFloat(nm[3], 64)
			if err1 != nil || err2 != nil {
				return nil, config.Errorf("screencast", "bad time window in tag %q", m[0])
			}
			if end <= start {
				return nil, config.Errorf("screencast", "end %.2f must be after start %.2f in tag %q", end, start, m[0])
			}
			mode, err := ParseMode(nm[4])
			if err != nil {
				return nil, err
			}
			overlays = append(overlays, Overlay{
				File:  ensureExtension(nm[1]),
				Mode:  mode,
				Start: start,
				End:   end,
			})
			continue
		}

		return nil, config.Errorf("screencast", "unparseable tag %q", m[0])
	}

	return overlays, nil
}

// ensureExtension appends .mp4 to bare screencast names.
func ensureExtension(name string) string {
	if !strings.Contains(name, ".") {
		return name + ".mp4"
	}
	return name
}
