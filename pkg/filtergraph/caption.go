package filtergraph

import (
	"fmt"
	"strings"

	"video-branding-worker/apperror"
)

// CaptionSeparator joins the four caption fields on the wire.
const CaptionSeparator = "-"

// NamePrefix is prepended to the doctor's name when composing a caption.
const NamePrefix = "Dr."

// Caption holds the four text labels drawn onto the branded stream, in
// drawing order.
type Caption struct {
	Name       string
	Speciality string
	Hospital   string
	City       string
}

func (c Caption) Fields() [4]string {
	return [4]string{c.Name, c.Speciality, c.Hospital, c.City}
}

func (c Caption) Validate() error {
	labels := [4]string{"name", "speciality", "hospital", "city"}
	for i, f := range c.Fields() {
		if strings.TrimSpace(f) == "" {
			return apperror.NewValidationError("caption", "%s is empty", labels[i])
		}
	}
	return nil
}

// ParseCaption splits the wire caption on "-" after stripping quotes and line
// breaks. Exactly four non-empty trimmed segments are required.
func ParseCaption(text string) (Caption, error) {
	parts := strings.Split(sanitize(text), CaptionSeparator)
	if len(parts) != 4 {
		return Caption{}, apperror.NewValidationError("caption", "expected 4 segments separated by %q, got %d", CaptionSeparator, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	c := Caption{Name: parts[0], Speciality: parts[1], Hospital: parts[2], City: parts[3]}
	if err := c.Validate(); err != nil {
		return Caption{}, err
	}
	return c, nil
}

// ComposeCaption produces the wire caption for the four submitted fields.
// Fields may not contain the separator, otherwise the worker could not split
// them back apart.
func ComposeCaption(name, speciality, hospital, city string) (string, error) {
	fields := map[string]string{"name": name, "speciality": speciality, "hospital": hospital, "city": city}
	for _, key := range []string{"name", "speciality", "hospital", "city"} {
		value := strings.TrimSpace(sanitize(fields[key]))
		if value == "" {
			return "", apperror.NewValidationError(key, "is required")
		}
		if strings.Contains(value, CaptionSeparator) {
			return "", apperror.NewValidationError(key, "must not contain %q", CaptionSeparator)
		}
	}
	text := fmt.Sprintf("%s%s - %s - %s - %s",
		NamePrefix, strings.TrimSpace(name), strings.TrimSpace(speciality), strings.TrimSpace(hospital), strings.TrimSpace(city))
	if _, err := ParseCaption(text); err != nil {
		return "", err
	}
	return text, nil
}

func sanitize(text string) string {
	return strings.NewReplacer(`'`, "", `"`, "", "\r", " ", "\n", " ").Replace(text)
}
