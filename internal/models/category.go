package models

type Category struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Icon  *string `json:"icon,omitempty"`
	Color *string `json:"color,omitempty"`
}
