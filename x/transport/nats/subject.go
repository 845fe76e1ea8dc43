package nats

import "strings"

// SubjectFromTopic maps an MQTT-style topic or filter to a NATS subject
func SubjectFromTopic(topic string) string {
	levels := strings.Split(strings.TrimSuffix(topic, "/"), "/")
	for i, l := range levels {
		switch l {
		case "+":
			levels[i] = "*"
		case "#":
			levels[i] = ">"
		default:
			levels[i] = strings.ReplaceAll(l, ".", "_")
		}
	}
	return strings.Join(levels, ".")
}

// TopicFromSubject is the inverse of SubjectFromTopic for concrete subjects
func TopicFromSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}
