package models

// Country is one selectable entry of the dashboard. All fields are non-empty;
// Code is the two-letter ISO 3166-1 alpha-2 code.
type Country struct {
	Name    string `json:"name"`
	Capital string `json:"capital"`
	Code    string `json:"code"`
}
