package summarizer

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders the summary for machine consumption. Field names
// are untranslated.
type YAMLFormatter struct{}

// Format implements Formatter.
func (YAMLFormatter) Format(s *Summary) string {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("error: %q\n", err.Error())
	}
	return string(data)
}

var _ Formatter = YAMLFormatter{}
