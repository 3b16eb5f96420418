package technique

import (
	"fmt"
	"strings"
)

const maxReferences = 3

// MultiImageConfig analyzes a target image against reference images.
type MultiImageConfig struct {
	ReferenceImageIDs  []string     `json:"referenceImageIds"`
	TargetImageID      string       `json:"targetImageId"`
	RelationshipType   Relationship `json:"relationshipType"`
	ContextDescription string       `json:"contextDescription,omitempty"`
}

func (MultiImageConfig) Kind() Kind { return KindMultiImage }
func (MultiImageConfig) sealed()    {}

// Validate checks references, target and relationship.
func (c MultiImageConfig) Validate() ValidationResult {
	var errs []string
	if len(c.ReferenceImageIDs) == 0 {
		errs = append(errs, "At least one reference image is required")
	}
	if len(c.ReferenceImageIDs) > maxReferences {
		errs = append(errs, "Maximum 3 reference images recommended for optimal performance")
	}
	if strings.TrimSpace(c.TargetImageID) == "" {
		errs = append(errs, "Target image is required")
	} else {
		for _, id := range c.ReferenceImageIDs {
			if id == c.TargetImageID {
				errs = append(errs, "Target image cannot be the same as a reference image")
				break
			}
		}
	}
	if c.RelationshipType == "" {
		errs = append(errs, "Relationship type must be specified")
	} else if _, ok := relationshipContexts[c.RelationshipType]; !ok {
		errs = append(errs, fmt.Sprintf("Unknown relationship type %q", c.RelationshipType))
	}
	return newResult(errs)
}

// BuildPrompt renders the reference announcement, the relationship context and
// the analysis task.
func (c MultiImageConfig) BuildPrompt() (string, error) {
	if res := c.Validate(); !res.Valid {
		return "", invalid(KindMultiImage, res)
	}
	return ReferenceAnnouncement(len(c.ReferenceImageIDs), c.RelationshipType) + "\n\n" +
		RelationshipParagraph(c.RelationshipType, c.ContextDescription) + "\n\n" +
		"Now, analyze the target image using the reference image(s) as specified above.", nil
}

// ReferenceAnnouncement states how many references are provided and why.
func ReferenceAnnouncement(count int, rel Relationship) string {
	plural := ""
	if count > 1 {
		plural = "s"
	}
	return fmt.Sprintf("I am providing %d reference image%s for %s purposes.", count, plural, rel)
}

// RelationshipParagraph returns the fixed paragraph for rel, followed by the
// caller's description when one is given.
func RelationshipParagraph(rel Relationship, description string) string {
	text := relationshipContexts[rel]
	if description != "" {
		return text + "\n\nAdditional context: " + description
	}
	return text
}
