package models

type StoreType string

const (
	StoreGooglePlay StoreType = "google_play"
	StoreAppStore   StoreType = "app_store"
)

// Valid reports whether s is one of the known store types.
func (s StoreType) Valid() bool {
	switch s {
	case StoreGooglePlay, StoreAppStore:
		return true
	}
	return false
}
