package fir

import (
	"errors"
	"strings"
)

// Placeholder marks a field the conversation did not resolve.
const Placeholder = "Not Provided"

var (
	ErrInsufficientHistory = errors.New("insufficient conversation history")
	ErrMissingDetails      = errors.New("FIR details are required")
	ErrNotFound            = errors.New("FIR file not found")
	ErrInvalidFilename     = errors.New("invalid FIR filename")
)

// Details is the structured First Information Report drawn from a chat.
type Details struct {
	ComplainantName     string `json:"complainant_name"`
	ComplainantAddress  string `json:"complainant_address"`
	ComplainantPhone    string `json:"complainant_phone"`
	IncidentDate        string `json:"incident_date"`
	IncidentTime        string `json:"incident_time"`
	IncidentLocation    string `json:"incident_location"`
	HarassmentType      string `json:"harassment_type"`
	AccusedName         string `json:"accused_name"`
	AccusedDescription  string `json:"accused_description"`
	IncidentDescription string `json:"incident_description"`
	Witnesses           string `json:"witnesses"`
	Evidence            string `json:"evidence"`
}

// field pairs a JSON key with the struct slot it fills.
type field struct {
	key string
	ptr *string
}

func (d *Details) fields() []field {
	return []field{
		{"complainant_name", &d.ComplainantName},
		{"complainant_address", &d.ComplainantAddress},
		{"complainant_phone", &d.ComplainantPhone},
		{"incident_date", &d.IncidentDate},
		{"incident_time", &d.IncidentTime},
		{"incident_location", &d.IncidentLocation},
		{"harassment_type", &d.HarassmentType},
		{"accused_name", &d.AccusedName},
		{"accused_description", &d.AccusedDescription},
		{"incident_description", &d.IncidentDescription},
		{"witnesses", &d.Witnesses},
		{"evidence", &d.Evidence},
	}
}

// FillPlaceholders sets every blank field to Placeholder.
func (d *Details) FillPlaceholders() {
	for _, f := range d.fields() {
		if isBlank(*f.ptr) {
			*f.ptr = Placeholder
		}
	}
}

// Resolved counts the fields holding real content.
func (d *Details) Resolved() int {
	n := 0
	for _, f := range d.fields() {
		if !isBlank(*f.ptr) {
			n++
		}
	}
	return n
}

// isBlank also matches the placeholder in any case, so a model echoing
// "not provided" is normalised to the exact literal.
func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") || strings.EqualFold(s, Placeholder)
}
