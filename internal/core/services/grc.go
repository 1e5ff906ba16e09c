package services

import "gopkg.in/yaml.v3"

// validGRCContent checks that a payload declared as a GRC flowgraph at least
// parses as YAML. No schema checks beyond that; GNU Radio owns the format.
func validGRCContent(content string) bool {
	var v interface{}
	return yaml.Unmarshal([]byte(content), &v) == nil
}
