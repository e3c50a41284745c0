package script

import (
	"strings"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// sentencesPerSection bounds section size when a script arrives as one block
// of prose.
const sentencesPerSection = 2

// SplitSections divides a script into ordered sections. Paragraphs separated
// by blank lines are the natural boundaries; a single-paragraph script is
// grouped by sentences instead so asset alignment still gets more than one
// slot.
func SplitSections(text string) []core.Section {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) > 1 {
		return numberSections(paragraphs)
	}

	return numberSections(groupSentences(text))
}

func splitParagraphs(text string) []string {
	var paragraphs []string

	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}

	return paragraphs
}

// groupSentences splits on sentence terminators and joins consecutive
// sentences into sections.
func groupSentences(text string) []string {
	sentences := splitSentences(text)

	var groups []string

	for start := 0; start < len(sentences); start += sentencesPerSection {
		end := start + sentencesPerSection
		if end > len(sentences) {
			end = len(sentences)
		}

		groups = append(groups, strings.Join(sentences[start:end], " "))
	}

	return groups
}

func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	for _, r := range strings.TrimSpace(text) {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}

			current.Reset()
		}
	}

	remainder := strings.TrimSpace(current.String())
	if remainder != "" {
		sentences = append(sentences, remainder)
	}

	return sentences
}

func numberSections(texts []string) []core.Section {
	sections := make([]core.Section, 0, len(texts))

	for index, sectionText := range texts {
		sections = append(sections, core.Section{
			Index: index,
			Text:  sectionText,
		})
	}

	return sections
}
